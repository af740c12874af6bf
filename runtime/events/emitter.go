package events

import "time"

// Emitter provides helpers for publishing speech events with shared metadata.
// A nil Emitter, or one without a bus, silently drops everything.
type Emitter struct {
	bus    *EventBus
	source string
}

// NewEmitter creates a new event emitter tagged with source.
func NewEmitter(bus *EventBus, source string) *Emitter {
	return &Emitter{bus: bus, source: source}
}

// Bus returns the underlying bus.
func (e *Emitter) Bus() *EventBus {
	if e == nil {
		return nil
	}
	return e.bus
}

func (e *Emitter) emit(eventType EventType, messageID string, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    e.source,
		MessageID: messageID,
		Data:      data,
	})
}

// ModeChanged emits the tts.mode.changed event.
func (e *Emitter) ModeChanged(enabled bool) {
	e.emit(EventModeChanged, "", ModeChangedData{Enabled: enabled})
}

// GenerationStarted emits the tts.generation.started event.
func (e *Emitter) GenerationStarted(messageID, provider, voice, language string, chars int) {
	e.emit(EventGenerationStarted, messageID, GenerationStartedData{
		Provider: provider,
		Voice:    voice,
		Language: language,
		Chars:    chars,
	})
}

// GenerationCompleted emits the tts.generation.completed event.
func (e *Emitter) GenerationCompleted(messageID string, data GenerationCompletedData) {
	e.emit(EventGenerationCompleted, messageID, data)
}

// GenerationFailed emits the tts.generation.failed event.
func (e *Emitter) GenerationFailed(messageID, provider string, err error, duration time.Duration) {
	e.emit(EventGenerationFailed, messageID, GenerationFailedData{
		Provider: provider,
		Error:    err,
		Duration: duration,
	})
}

// BacklogCompleted emits the tts.backlog.completed event.
func (e *Emitter) BacklogCompleted(data BacklogCompletedData) {
	e.emit(EventBacklogCompleted, "", data)
}

// PlaybackStatus emits the playback.status event.
func (e *Emitter) PlaybackStatus(messageID, status, handle string) {
	e.emit(EventPlaybackStatus, messageID, PlaybackStatusData{Status: status, Handle: handle})
}

// PlaybackFailed emits the playback.failed event.
func (e *Emitter) PlaybackFailed(messageID, handle string, err error) {
	e.emit(EventPlaybackFailed, messageID, PlaybackFailedData{Handle: handle, Error: err})
}

// RecognitionStarted emits the recognition.started event.
func (e *Emitter) RecognitionStarted(sessionID, language string) {
	e.emit(EventRecognitionStarted, "", RecognitionStartedData{SessionID: sessionID, Language: language})
}

// RecognitionResult emits the recognition.result event.
func (e *Emitter) RecognitionResult(sessionID, transcript string, isFinal bool) {
	e.emit(EventRecognitionResult, "", RecognitionResultData{
		SessionID:  sessionID,
		Transcript: transcript,
		IsFinal:    isFinal,
	})
}

// RecognitionError emits the recognition.error event.
func (e *Emitter) RecognitionError(sessionID, code, message string) {
	e.emit(EventRecognitionError, "", RecognitionErrorData{SessionID: sessionID, Code: code, Message: message})
}

// RecognitionEnded emits the recognition.ended event.
func (e *Emitter) RecognitionEnded(sessionID string) {
	e.emit(EventRecognitionEnded, "", RecognitionEndedData{SessionID: sessionID})
}
