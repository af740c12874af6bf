package events

import (
	"time"
)

// EventType identifies the type of event emitted by the speech runtime.
type EventType string

const (
	// EventModeChanged marks a TTS mode transition (enabled/disabled).
	EventModeChanged EventType = "tts.mode.changed"

	// EventGenerationStarted marks the start of a synthesis call.
	EventGenerationStarted EventType = "tts.generation.started"
	// EventGenerationCompleted marks a stored audio record.
	EventGenerationCompleted EventType = "tts.generation.completed"
	// EventGenerationFailed marks a failed synthesis call.
	EventGenerationFailed EventType = "tts.generation.failed"

	// EventBacklogCompleted marks the end of a backlog sweep.
	EventBacklogCompleted EventType = "tts.backlog.completed"

	// EventPlaybackStatus marks a playback session status change.
	EventPlaybackStatus EventType = "playback.status"
	// EventPlaybackFailed marks a decode/play failure.
	EventPlaybackFailed EventType = "playback.failed"

	// EventRecognitionStarted marks the platform confirming recognition began.
	EventRecognitionStarted EventType = "recognition.started"
	// EventRecognitionResult carries an interim or final transcript.
	EventRecognitionResult EventType = "recognition.result"
	// EventRecognitionError carries a recognition error code.
	EventRecognitionError EventType = "recognition.error"
	// EventRecognitionEnded marks the recognition session returning to idle.
	EventRecognitionEnded EventType = "recognition.ended"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a speech runtime event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	// Source names the component that emitted the event.
	Source string
	// MessageID is set for per-message events.
	MessageID string
	Data      EventData
}

// ModeChangedData is the payload of EventModeChanged.
type ModeChangedData struct {
	Enabled bool
}

// GenerationStartedData is the payload of EventGenerationStarted.
type GenerationStartedData struct {
	Provider string
	Voice    string
	Language string
	Chars    int
}

// GenerationCompletedData is the payload of EventGenerationCompleted.
type GenerationCompletedData struct {
	Provider      string
	Duration      time.Duration // synthesis latency
	AudioBytes    int
	AudioDuration time.Duration
	MIMEType      string
}

// GenerationFailedData is the payload of EventGenerationFailed.
type GenerationFailedData struct {
	Provider string
	Error    error
	Duration time.Duration
}

// BacklogCompletedData is the payload of EventBacklogCompleted.
type BacklogCompletedData struct {
	Processed int
	Failed    int
	Skipped   int
	Duration  time.Duration
	// AutoPlayed is the message played at the end of the sweep, if any.
	AutoPlayed string
}

// PlaybackStatusData is the payload of EventPlaybackStatus.
// Status is one of "loading", "playing", "paused", "stopped".
type PlaybackStatusData struct {
	Status string
	Handle string
}

// PlaybackFailedData is the payload of EventPlaybackFailed.
type PlaybackFailedData struct {
	Handle string
	Error  error
}

// RecognitionStartedData is the payload of EventRecognitionStarted.
type RecognitionStartedData struct {
	SessionID string
	Language  string
}

// RecognitionResultData is the payload of EventRecognitionResult.
type RecognitionResultData struct {
	SessionID  string
	Transcript string
	IsFinal    bool
}

// RecognitionErrorData is the payload of EventRecognitionError.
type RecognitionErrorData struct {
	SessionID string
	Code      string
	Message   string
}

// RecognitionEndedData is the payload of EventRecognitionEnded.
type RecognitionEndedData struct {
	SessionID string
}

func (ModeChangedData) eventData()         {}
func (GenerationStartedData) eventData()   {}
func (GenerationCompletedData) eventData() {}
func (GenerationFailedData) eventData()    {}
func (BacklogCompletedData) eventData()    {}
func (PlaybackStatusData) eventData()      {}
func (PlaybackFailedData) eventData()      {}
func (RecognitionStartedData) eventData()  {}
func (RecognitionResultData) eventData()   {}
func (RecognitionErrorData) eventData()    {}
func (RecognitionEndedData) eventData()    {}
