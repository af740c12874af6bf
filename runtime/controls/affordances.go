// Package controls maps playback state onto the play/pause/stop affordances
// shown next to each chat message.
package controls

import "github.com/deathnote2501/fia-v3.0-sub001/runtime/playback"

// Affordances lists which controls of a message are visible.
type Affordances struct {
	Play  bool `json:"play"`
	Pause bool `json:"pause"`
	Stop  bool `json:"stop"`
}

// For returns the affordances of a message in status. Only a playing message
// offers pause and stop; every other status, unknown ones included, offers
// play.
func For(status playback.Status) Affordances {
	if status == playback.StatusPlaying {
		return Affordances{Pause: true, Stop: true}
	}
	return Affordances{Play: true}
}

// View is the rendered control state of one message.
type View struct {
	MessageID   string          `json:"messageId"`
	Status      string          `json:"status"`
	Affordances Affordances     `json:"affordances"`
	// Error is set after a failed generation or playback until the next
	// status update.
	Error string `json:"error,omitempty"`
}

func viewFor(messageID string, status playback.Status) View {
	return View{MessageID: messageID, Status: status.String(), Affordances: For(status)}
}
