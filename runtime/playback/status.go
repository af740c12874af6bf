package playback

import "strings"

// Status is the state of a playback session.
type Status int

// Session states. StatusNone means no session is active.
const (
	StatusNone Status = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusStopped
)

var statusNames = [...]string{
	StatusNone:    "none",
	StatusLoading: "loading",
	StatusPlaying: "playing",
	StatusPaused:  "paused",
	StatusStopped: "stopped",
}

// String returns the lower-case status name used on the wire.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// ParseStatus parses a status name. Unknown names return StatusNone, false.
func ParseStatus(name string) (Status, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == name {
			return Status(i), true
		}
	}
	return StatusNone, false
}
