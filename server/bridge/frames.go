package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/controls"
)

// Frame types sent by the page.
const (
	FrameMessageAdd    = "message.add"
	FrameMessageRemove = "message.remove"
	FrameTTSPlay       = "tts.play"
	FrameTTSPause      = "tts.pause"
	FrameTTSStop       = "tts.stop"
	FrameTTSMode       = "tts.mode"
	FrameTTSVoice      = "tts.voice"
	FrameTTSLanguage   = "tts.language"
	FrameVoiceStart    = "voice.start"
	FrameVoiceStop     = "voice.stop"
	FrameAudioReady    = "audio.ready"
	FrameAudioEnded    = "audio.ended"
	FrameAudioError    = "audio.error"
)

// Frame types sent to the page. tts.mode and voice.start travel both ways.
const (
	FrameTTSStatus       = "tts.status"
	FrameTTSError        = "tts.error"
	FrameControls        = "controls"
	FrameControlsVisible = "controls.visible"
	FrameVoiceResult     = "voice.result"
	FrameVoiceError      = "voice.error"
	FrameVoiceEnd        = "voice.end"
	FrameAudioLoad       = "audio.load"
	FrameAudioPlay       = "audio.play"
	FrameAudioPause      = "audio.pause"
	FrameAudioResume     = "audio.resume"
	FrameAudioStop       = "audio.stop"
	FrameSnapshot        = "snapshot"
	FrameError           = "error"
)

// Frame is the JSON envelope of every bridge message.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(Frame{Type: typ, Data: raw})
}

func decodeData[T any](f Frame) (T, error) {
	var v T
	if len(f.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(f.Data, &v); err != nil {
		return v, fmt.Errorf("invalid %s payload: %w", f.Type, err)
	}
	return v, nil
}

// Page to core payloads.

// MessagePayload describes a rendered chat message.
type MessagePayload struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
	Text string `json:"text"`
}

// MessageRef names a message.
type MessageRef struct {
	ID string `json:"id"`
}

// ModePayload carries the TTS toggle.
type ModePayload struct {
	Enabled bool `json:"enabled"`
}

// VoicePayload selects the synthesis voice.
type VoicePayload struct {
	Voice string `json:"voice"`
}

// LanguagePayload selects a language tag.
type LanguagePayload struct {
	Language string `json:"language"`
}

// AudioSignal reports the page's audio element state for a handle.
type AudioSignal struct {
	Handle  string `json:"handle"`
	Message string `json:"message,omitempty"`
}

// Core to page payloads.

// StatusPayload is a playback status change.
type StatusPayload struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// ErrorPayload reports a failure for a message.
type ErrorPayload struct {
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error"`
}

// VisiblePayload shows or hides the control group.
type VisiblePayload struct {
	Visible bool `json:"visible"`
}

// VoiceStartPayload announces a recognition session.
type VoiceStartPayload struct {
	SessionID string `json:"sessionId"`
	Language  string `json:"language,omitempty"`
}

// VoiceResultPayload carries a transcript.
type VoiceResultPayload struct {
	SessionID  string `json:"sessionId"`
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

// VoiceErrorPayload carries a recognition error code and its message.
type VoiceErrorPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// VoiceEndPayload marks the end of a recognition session.
type VoiceEndPayload struct {
	SessionID string `json:"sessionId"`
}

// AudioLoadPayload hands a clip to the page's audio element.
type AudioLoadPayload struct {
	Handle     string `json:"handle"`
	MessageID  string `json:"messageId"`
	MIMEType   string `json:"mimeType"`
	Audio      []byte `json:"audio"` // base64 on the wire
	DurationMS int64  `json:"durationMs,omitempty"`
}

// AudioHandle names a loaded clip.
type AudioHandle struct {
	Handle string `json:"handle"`
}

// RequestError answers a page request that could not be served.
type RequestError struct {
	Request string `json:"request"`
	Message string `json:"message"`
}

// SnapshotPayload is the state sent to a page right after it connects.
type SnapshotPayload struct {
	TTSEnabled      bool            `json:"ttsEnabled"`
	ControlsVisible bool            `json:"controlsVisible"`
	Controls        []controls.View `json:"controls"`
}
