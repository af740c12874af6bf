package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
)

// Span names produced by OTelEventListener.
const (
	SpanRecognition = "speech.recognition"
	SpanPlayback    = "speech.playback"
	SpanBacklog     = "speech.backlog"
	SpanModeChange  = "speech.mode"
)

// spanEntry tracks an in-flight span.
type spanEntry struct {
	span   trace.Span
	errMsg string // first error seen; empty means success so far
}

// OTelEventListener turns speech events into spans: one span per
// recognition session, one per playback session, and a span per backlog
// sweep. Synthesis spans are started by the coordinator itself.
type OTelEventListener struct {
	tracer trace.Tracer

	mu       sync.Mutex
	parent   context.Context //nolint:containedctx // parents root spans
	inflight map[string]*spanEntry
}

// NewOTelEventListener creates a listener that creates OTel spans from speech events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:   tracer,
		parent:   context.Background(),
		inflight: make(map[string]*spanEntry),
	}
}

// SetParent makes spans started from now on children of the span in ctx.
// The bridge uses it to hang a page's activity under its connection span.
func (l *OTelEventListener) SetParent(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.mu.Lock()
	l.parent = ctx
	l.mu.Unlock()
}

// OnEvent handles a single event. It can be passed to EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	switch data := evt.Data.(type) {
	case events.RecognitionStartedData:
		l.startSpan("recognition:"+data.SessionID, SpanRecognition,
			attribute.String("recognition.id", data.SessionID),
			attribute.String("recognition.language", data.Language),
		)
	case events.RecognitionResultData:
		l.addEvent("recognition:"+data.SessionID, "recognition.result",
			attribute.Bool("recognition.final", data.IsFinal),
			attribute.Int("recognition.chars", len(data.Transcript)),
		)
	case events.RecognitionErrorData:
		l.markError("recognition:"+data.SessionID, data.Code,
			attribute.String("recognition.error_code", data.Code),
		)
	case events.RecognitionEndedData:
		l.endSpan("recognition:" + data.SessionID)
	case events.PlaybackStatusData:
		l.playbackStatus(evt.MessageID, data)
	case events.PlaybackFailedData:
		key := "playback:" + data.Handle
		if data.Error != nil {
			l.markError(key, data.Error.Error())
		} else {
			l.markError(key, "playback failed")
		}
		l.endSpan(key)
	case events.BacklogCompletedData:
		l.backlogSpan(evt, data)
	case events.ModeChangedData:
		l.instantSpan(SpanModeChange, attribute.Bool("tts.enabled", data.Enabled))
	}
}

// Close ends every span still in flight. Used on shutdown so sessions that
// never reported their end are still exported.
func (l *OTelEventListener) Close() {
	l.mu.Lock()
	entries := l.inflight
	l.inflight = make(map[string]*spanEntry)
	l.mu.Unlock()

	for _, e := range entries {
		e.span.SetStatus(codes.Error, "abandoned")
		e.span.End()
	}
}

func (l *OTelEventListener) playbackStatus(messageID string, data events.PlaybackStatusData) {
	key := "playback:" + data.Handle
	switch data.Status {
	case "stopped":
		l.endSpan(key)
	case "loading", "playing", "paused":
		if !l.has(key) {
			l.startSpan(key, SpanPlayback,
				attribute.String("message.id", messageID),
				attribute.String("playback.handle", data.Handle),
			)
		}
		l.addEvent(key, "playback."+data.Status)
	}
}

func (l *OTelEventListener) backlogSpan(evt *events.Event, data events.BacklogCompletedData) {
	end := evt.Timestamp
	start := end.Add(-data.Duration)
	_, span := l.tracer.Start(l.parentCtx(), SpanBacklog,
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.Int("backlog.processed", data.Processed),
			attribute.Int("backlog.failed", data.Failed),
			attribute.Int("backlog.skipped", data.Skipped),
			attribute.String("backlog.autoplayed", data.AutoPlayed),
		),
	)
	if data.Failed > 0 {
		span.SetStatus(codes.Error, "some messages failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

func (l *OTelEventListener) instantSpan(name string, attrs ...attribute.KeyValue) {
	_, span := l.tracer.Start(l.parentCtx(), name, trace.WithAttributes(attrs...))
	span.End()
}

func (l *OTelEventListener) parentCtx() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.parent
}

func (l *OTelEventListener) has(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inflight[key]
	return ok
}

func (l *OTelEventListener) startSpan(key, name string, attrs ...attribute.KeyValue) {
	_, span := l.tracer.Start(l.parentCtx(), name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	l.mu.Lock()
	prev := l.inflight[key]
	l.inflight[key] = &spanEntry{span: span}
	l.mu.Unlock()

	if prev != nil {
		prev.span.SetStatus(codes.Error, "superseded")
		prev.span.End()
	}
}

func (l *OTelEventListener) addEvent(key, name string, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.inflight[key]; ok {
		e.span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

func (l *OTelEventListener) markError(key, msg string, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.inflight[key]
	if !ok {
		return
	}
	e.span.SetAttributes(attrs...)
	if e.errMsg == "" {
		e.errMsg = msg
	}
}

func (l *OTelEventListener) endSpan(key string) {
	l.mu.Lock()
	e, ok := l.inflight[key]
	delete(l.inflight, key)
	l.mu.Unlock()
	if !ok {
		return
	}
	if e.errMsg != "" {
		e.span.SetStatus(codes.Error, e.errMsg)
	} else {
		e.span.SetStatus(codes.Ok, "")
	}
	e.span.End()
}
