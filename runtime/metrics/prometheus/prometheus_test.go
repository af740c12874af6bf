package prometheus

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSynthesis(t *testing.T) {
	synthesisDuration.Reset()
	synthesisRequestsTotal.Reset()
	synthesisAudioBytesTotal.Reset()

	RecordSynthesis("backend", statusSuccess, 1.5, 2048)
	RecordSynthesis("backend", statusSuccess, 0.5, 1024)
	RecordSynthesis("backend", statusError, 0.2, 0)

	if got := testutil.ToFloat64(synthesisRequestsTotal.WithLabelValues("backend", statusSuccess)); got != 2 {
		t.Errorf("Expected 2 successful calls, got %v", got)
	}
	if got := testutil.ToFloat64(synthesisRequestsTotal.WithLabelValues("backend", statusError)); got != 1 {
		t.Errorf("Expected 1 failed call, got %v", got)
	}
	if got := testutil.ToFloat64(synthesisAudioBytesTotal.WithLabelValues("backend")); got != 3072 {
		t.Errorf("Expected 3072 audio bytes, got %v", got)
	}
	if count := testutil.CollectAndCount(synthesisDuration); count == 0 {
		t.Error("Expected non-zero histogram observations")
	}
}

func TestRecordSynthesisCharactersIgnoresZero(t *testing.T) {
	synthesisCharactersTotal.Reset()

	RecordSynthesisCharacters("backend", 0)
	if count := testutil.CollectAndCount(synthesisCharactersTotal); count != 0 {
		t.Errorf("Expected no series for zero characters, got %d", count)
	}

	RecordSynthesisCharacters("backend", 42)
	if got := testutil.ToFloat64(synthesisCharactersTotal.WithLabelValues("backend")); got != 42 {
		t.Errorf("Expected 42 characters, got %v", got)
	}
}

func TestRecordMode(t *testing.T) {
	RecordMode(true)
	if got := testutil.ToFloat64(ttsModeEnabled); got != 1 {
		t.Errorf("Expected mode gauge 1, got %v", got)
	}
	RecordMode(false)
	if got := testutil.ToFloat64(ttsModeEnabled); got != 0 {
		t.Errorf("Expected mode gauge 0, got %v", got)
	}
}

func TestRecordBacklogSweep(t *testing.T) {
	backlogMessagesTotal.Reset()

	RecordBacklogSweep(3, 1, 2, 4.5)

	for outcome, want := range map[string]float64{"processed": 3, "failed": 1, "skipped": 2} {
		if got := testutil.ToFloat64(backlogMessagesTotal.WithLabelValues(outcome)); got != want {
			t.Errorf("%s: expected %v, got %v", outcome, want, got)
		}
	}
}

func TestRecordPlaybackStatus(t *testing.T) {
	playbackTransitionsTotal.Reset()

	RecordPlaybackStatus("loading")
	RecordPlaybackStatus("playing")
	if got := testutil.ToFloat64(playbackActive); got != 1 {
		t.Errorf("Expected active playback, got %v", got)
	}

	RecordPlaybackStatus("stopped")
	if got := testutil.ToFloat64(playbackActive); got != 0 {
		t.Errorf("Expected no active playback, got %v", got)
	}
	if got := testutil.ToFloat64(playbackTransitionsTotal.WithLabelValues("playing")); got != 1 {
		t.Errorf("Expected 1 playing transition, got %v", got)
	}
}

func TestRecordRecognition(t *testing.T) {
	recognitionResultsTotal.Reset()
	recognitionErrorsTotal.Reset()

	RecordRecognitionResult(false)
	RecordRecognitionResult(false)
	RecordRecognitionResult(true)
	RecordRecognitionError("no-speech")

	if got := testutil.ToFloat64(recognitionResultsTotal.WithLabelValues("false")); got != 2 {
		t.Errorf("Expected 2 interim results, got %v", got)
	}
	if got := testutil.ToFloat64(recognitionResultsTotal.WithLabelValues("true")); got != 1 {
		t.Errorf("Expected 1 final result, got %v", got)
	}
	if got := testutil.ToFloat64(recognitionErrorsTotal.WithLabelValues("no-speech")); got != 1 {
		t.Errorf("Expected 1 no-speech error, got %v", got)
	}
}

func TestRecordBridgeClients(t *testing.T) {
	RecordBridgeClients(2)
	if got := testutil.ToFloat64(bridgeClients); got != 2 {
		t.Errorf("Expected 2 clients, got %v", got)
	}
	RecordBridgeClients(0)
	if got := testutil.ToFloat64(bridgeClients); got != 0 {
		t.Errorf("Expected 0 clients, got %v", got)
	}
}

func TestNewExporter(t *testing.T) {
	exporter := NewExporter(":9091")
	if exporter.Registry() == nil {
		t.Fatal("Expected non-nil registry")
	}

	// Speech metrics are registered, so registering one again collides.
	if err := exporter.Register(playbackActive); err == nil {
		t.Error("Expected duplicate registration error")
	}
}

func TestNewExporterWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9092", reg)

	if exporter.Registry() != reg {
		t.Error("Expected custom registry to be used")
	}
}

func TestExporterHandler(t *testing.T) {
	RecordMode(true)
	exporter := NewExporter("")

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "speechd_tts_mode_enabled 1") {
		t.Errorf("Expected mode gauge in output, got:\n%s", body)
	}
}

func TestExporterStartShutdown(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())

	errCh := make(chan error, 1)
	go func() {
		errCh <- exporter.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exporter.Shutdown(ctx); err != nil {
		t.Errorf("Expected no error on shutdown, got %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for server to stop")
	}
}

func TestExporterDoubleStart(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())

	go func() {
		_ = exporter.Start()
	}()
	time.Sleep(100 * time.Millisecond)

	if err := exporter.Start(); err != nil {
		t.Errorf("Expected nil on double start, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = exporter.Shutdown(ctx)
}

func TestMetricsListener(t *testing.T) {
	synthesisRequestsTotal.Reset()
	synthesisCharactersTotal.Reset()
	backlogMessagesTotal.Reset()
	playbackTransitionsTotal.Reset()
	recognitionErrorsTotal.Reset()
	playbackFailuresBefore := testutil.ToFloat64(playbackFailuresTotal)

	bus := events.NewEventBus()
	defer bus.Close()
	bus.SubscribeAll(NewMetricsListener().Listener())
	emitter := events.NewEmitter(bus, "test")

	emitter.ModeChanged(true)
	emitter.GenerationStarted("m1", "backend", "nova", "fr-FR", 12)
	emitter.GenerationCompleted("m1", events.GenerationCompletedData{
		Provider:   "backend",
		Duration:   300 * time.Millisecond,
		AudioBytes: 512,
	})
	emitter.GenerationFailed("m2", "backend", errors.New("boom"), time.Second)
	emitter.BacklogCompleted(events.BacklogCompletedData{Processed: 2, Skipped: 1})
	emitter.PlaybackStatus("m1", "playing", "h1")
	emitter.PlaybackFailed("m2", "h2", errors.New("decode"))
	emitter.RecognitionError("r1", "network", "Network error")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"mode", testutil.ToFloat64(ttsModeEnabled), 1},
		{"chars", testutil.ToFloat64(synthesisCharactersTotal.WithLabelValues("backend")), 12},
		{"success", testutil.ToFloat64(synthesisRequestsTotal.WithLabelValues("backend", statusSuccess)), 1},
		{"error", testutil.ToFloat64(synthesisRequestsTotal.WithLabelValues("backend", statusError)), 1},
		{"processed", testutil.ToFloat64(backlogMessagesTotal.WithLabelValues("processed")), 2},
		{"playing", testutil.ToFloat64(playbackTransitionsTotal.WithLabelValues("playing")), 1},
		{"failures", testutil.ToFloat64(playbackFailuresTotal) - playbackFailuresBefore, 1},
		{"network", testutil.ToFloat64(recognitionErrorsTotal.WithLabelValues("network")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestMetricsListenerRecognitionSessions(t *testing.T) {
	l := NewMetricsListener()
	emit := func(data events.EventData) {
		l.Handle(&events.Event{Data: data})
	}

	emit(events.RecognitionStartedData{SessionID: "a"})
	emit(events.RecognitionStartedData{SessionID: "b"})
	if got := testutil.ToFloat64(recognitionSessionsActive); got != 2 {
		t.Errorf("Expected 2 active sessions, got %v", got)
	}

	// Ending a session that never started leaves the gauge alone.
	emit(events.RecognitionEndedData{SessionID: "never-started"})
	emit(events.RecognitionEndedData{SessionID: "a"})
	if got := testutil.ToFloat64(recognitionSessionsActive); got != 1 {
		t.Errorf("Expected 1 active session, got %v", got)
	}
	emit(events.RecognitionEndedData{SessionID: "b"})
	if got := testutil.ToFloat64(recognitionSessionsActive); got != 0 {
		t.Errorf("Expected 0 active sessions, got %v", got)
	}
}

func TestMetricsListenerNilData(t *testing.T) {
	l := NewMetricsListener()
	// Should not panic
	l.Handle(&events.Event{Type: events.EventPlaybackStatus})
}
