package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
)

// newTestListener returns a listener, in-memory exporter, and TracerProvider for tests.
func newTestListener(t *testing.T) (*OTelEventListener, *tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	tracer := tp.Tracer(InstrumentationName)
	listener := NewOTelEventListener(tracer)
	return listener, exp, tp
}

// flushAndGetSpans forces span export and returns spans.
// ForceFlush ensures all ended spans are exported; we read them before Shutdown
// because InMemoryExporter.Shutdown resets the buffer.
func flushAndGetSpans(t *testing.T, tp *sdktrace.TracerProvider, exp *tracetest.InMemoryExporter) tracetest.SpanStubs {
	t.Helper()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	spans := exp.GetSpans()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	return spans
}

// findSpan finds a span by name in the stubs or fails.
func findSpan(t *testing.T, spans tracetest.SpanStubs, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range spans {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("span %q not found in %d spans", name, len(spans))
	return tracetest.SpanStub{}
}

// hasAttr checks if a span has an attribute with the given key and string value.
func hasAttr(span tracetest.SpanStub, key, want string) bool {
	for _, a := range span.Attributes {
		if string(a.Key) == key && a.Value.AsString() == want {
			return true
		}
	}
	return false
}

// hasBoolAttr checks if a span has a boolean attribute with the given value.
func hasBoolAttr(span tracetest.SpanStub, key string, want bool) bool {
	for _, a := range span.Attributes {
		if string(a.Key) == key && a.Value.AsBool() == want {
			return true
		}
	}
	return false
}

func TestOTelEventListener_RecognitionSession(t *testing.T) {
	listener, exp, tp := newTestListener(t)

	listener.OnEvent(&events.Event{Data: events.RecognitionStartedData{SessionID: "r1", Language: "fr-FR"}})
	listener.OnEvent(&events.Event{Data: events.RecognitionResultData{SessionID: "r1", Transcript: "bon", IsFinal: false}})
	listener.OnEvent(&events.Event{Data: events.RecognitionResultData{SessionID: "r1", Transcript: "bonjour", IsFinal: true}})
	listener.OnEvent(&events.Event{Data: events.RecognitionEndedData{SessionID: "r1"}})

	spans := flushAndGetSpans(t, tp, exp)
	s := findSpan(t, spans, SpanRecognition)
	if s.Status.Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", s.Status.Code)
	}
	if !hasAttr(s, "recognition.language", "fr-FR") {
		t.Error("expected recognition.language attribute")
	}
	if len(s.Events) != 2 {
		t.Fatalf("expected 2 result events, got %d", len(s.Events))
	}
	if s.Events[1].Name != "recognition.result" {
		t.Errorf("unexpected event name %q", s.Events[1].Name)
	}
}

func TestOTelEventListener_RecognitionError(t *testing.T) {
	listener, exp, tp := newTestListener(t)

	listener.OnEvent(&events.Event{Data: events.RecognitionStartedData{SessionID: "r1"}})
	listener.OnEvent(&events.Event{Data: events.RecognitionErrorData{SessionID: "r1", Code: "no-speech"}})
	listener.OnEvent(&events.Event{Data: events.RecognitionEndedData{SessionID: "r1"}})

	spans := flushAndGetSpans(t, tp, exp)
	s := findSpan(t, spans, SpanRecognition)
	if s.Status.Code != codes.Error || s.Status.Description != "no-speech" {
		t.Errorf("expected Error(no-speech), got %v %q", s.Status.Code, s.Status.Description)
	}
	if !hasAttr(s, "recognition.error_code", "no-speech") {
		t.Error("expected recognition.error_code attribute")
	}
}

func TestOTelEventListener_EventsWithoutStartAreIgnored(t *testing.T) {
	listener, exp, tp := newTestListener(t)

	listener.OnEvent(&events.Event{Data: events.RecognitionErrorData{SessionID: "x", Code: "network"}})
	listener.OnEvent(&events.Event{Data: events.RecognitionEndedData{SessionID: "x"}})
	listener.OnEvent(&events.Event{Data: events.PlaybackStatusData{Status: "stopped", Handle: "h"}})
	listener.OnEvent(&events.Event{Type: events.EventPlaybackStatus})

	if spans := flushAndGetSpans(t, tp, exp); len(spans) != 0 {
		t.Errorf("expected no spans, got %d", len(spans))
	}
}

func TestOTelEventListener_PlaybackSession(t *testing.T) {
	listener, exp, tp := newTestListener(t)

	for _, status := range []string{"loading", "playing", "paused", "playing", "stopped"} {
		listener.OnEvent(&events.Event{
			MessageID: "m1",
			Data:      events.PlaybackStatusData{Status: status, Handle: "h1"},
		})
	}

	spans := flushAndGetSpans(t, tp, exp)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name != SpanPlayback {
		t.Errorf("expected %q, got %q", SpanPlayback, s.Name)
	}
	if !hasAttr(s, "message.id", "m1") {
		t.Error("expected message.id attribute")
	}
	if len(s.Events) != 4 {
		t.Errorf("expected 4 status events, got %d", len(s.Events))
	}
}

func TestOTelEventListener_PlaybackFailed(t *testing.T) {
	listener, exp, tp := newTestListener(t)

	listener.OnEvent(&events.Event{MessageID: "m1", Data: events.PlaybackStatusData{Status: "loading", Handle: "h1"}})
	listener.OnEvent(&events.Event{MessageID: "m1", Data: events.PlaybackFailedData{Handle: "h1", Error: errors.New("decode")}})

	spans := flushAndGetSpans(t, tp, exp)
	s := findSpan(t, spans, SpanPlayback)
	if s.Status.Code != codes.Error || s.Status.Description != "decode" {
		t.Errorf("expected Error(decode), got %v %q", s.Status.Code, s.Status.Description)
	}
}

func TestOTelEventListener_BacklogSpan(t *testing.T) {
	listener, exp, tp := newTestListener(t)
	now := time.Now()

	listener.OnEvent(&events.Event{
		Timestamp: now,
		Data:      events.BacklogCompletedData{Processed: 3, Failed: 1, Duration: 2 * time.Second},
	})

	spans := flushAndGetSpans(t, tp, exp)
	s := findSpan(t, spans, SpanBacklog)
	if got := s.EndTime.Sub(s.StartTime); got != 2*time.Second {
		t.Errorf("expected 2s span, got %v", got)
	}
	if s.Status.Code != codes.Error {
		t.Errorf("expected Error status for failures, got %v", s.Status.Code)
	}
}

func TestOTelEventListener_ModeChange(t *testing.T) {
	listener, exp, tp := newTestListener(t)

	listener.OnEvent(&events.Event{Data: events.ModeChangedData{Enabled: true}})

	spans := flushAndGetSpans(t, tp, exp)
	s := findSpan(t, spans, SpanModeChange)
	if !hasBoolAttr(s, "tts.enabled", true) {
		t.Error("expected tts.enabled=true")
	}
}

func TestOTelEventListener_SetParent(t *testing.T) {
	listener, exp, tp := newTestListener(t)

	parentCtx, parent := tp.Tracer("test").Start(context.Background(), "bridge.client")
	listener.SetParent(parentCtx)
	listener.OnEvent(&events.Event{Data: events.RecognitionStartedData{SessionID: "r1"}})
	listener.OnEvent(&events.Event{Data: events.RecognitionEndedData{SessionID: "r1"}})
	parent.End()

	spans := flushAndGetSpans(t, tp, exp)
	s := findSpan(t, spans, SpanRecognition)
	if s.Parent.SpanID() != parent.SpanContext().SpanID() {
		t.Error("recognition span should be child of the parent span")
	}
}

func TestOTelEventListener_CloseEndsInflight(t *testing.T) {
	listener, exp, tp := newTestListener(t)

	listener.OnEvent(&events.Event{Data: events.RecognitionStartedData{SessionID: "r1"}})
	listener.Close()

	spans := flushAndGetSpans(t, tp, exp)
	s := findSpan(t, spans, SpanRecognition)
	if s.Status.Description != "abandoned" {
		t.Errorf("expected abandoned status, got %q", s.Status.Description)
	}
}

func TestOTelEventListener_WithEventBus(t *testing.T) {
	listener, exp, tp := newTestListener(t)
	bus := events.NewEventBus()
	defer bus.Close()
	bus.SubscribeAll(listener.OnEvent)

	emitter := events.NewEmitter(bus, "test")
	emitter.RecognitionStarted("r1", "en-US")
	emitter.RecognitionResult("r1", "hello", true)
	emitter.RecognitionEnded("r1")

	spans := flushAndGetSpans(t, tp, exp)
	findSpan(t, spans, SpanRecognition)
}
