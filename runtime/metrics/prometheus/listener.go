package prometheus

import (
	"sync"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
)

// Status constants for metric labels.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// MetricsListener records speech events as Prometheus metrics. Register it
// with EventBus.SubscribeAll.
type MetricsListener struct {
	mu       sync.Mutex
	sessions map[string]struct{}
}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{sessions: make(map[string]struct{})}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	switch data := event.Data.(type) {
	case events.ModeChangedData:
		RecordMode(data.Enabled)
	case events.GenerationStartedData:
		RecordSynthesisCharacters(data.Provider, data.Chars)
	case events.GenerationCompletedData:
		RecordSynthesis(data.Provider, statusSuccess, data.Duration.Seconds(), data.AudioBytes)
	case events.GenerationFailedData:
		RecordSynthesis(data.Provider, statusError, data.Duration.Seconds(), 0)
	case events.BacklogCompletedData:
		RecordBacklogSweep(data.Processed, data.Failed, data.Skipped, data.Duration.Seconds())
	case events.PlaybackStatusData:
		RecordPlaybackStatus(data.Status)
	case events.PlaybackFailedData:
		RecordPlaybackFailure()
	case events.RecognitionStartedData:
		l.sessionStarted(data.SessionID)
	case events.RecognitionResultData:
		RecordRecognitionResult(data.IsFinal)
	case events.RecognitionErrorData:
		RecordRecognitionError(data.Code)
	case events.RecognitionEndedData:
		l.sessionEnded(data.SessionID)
	}
}

// A session may end without having started (platform failure), so the
// gauge follows the set of sessions seen starting.
func (l *MetricsListener) sessionStarted(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[id] = struct{}{}
	recognitionSessionsActive.Set(float64(len(l.sessions)))
}

func (l *MetricsListener) sessionEnded(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, id)
	recognitionSessionsActive.Set(float64(len(l.sessions)))
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
