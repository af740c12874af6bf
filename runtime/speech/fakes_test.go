package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/playback"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/tts"
)

// fakeSynth counts calls and can hold them until released.
type fakeSynth struct {
	mu      sync.Mutex
	calls   int
	texts   []string
	fail    map[string]error
	gate    chan struct{}
	started chan string
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{fail: map[string]error{}, started: make(chan string, 64)}
}

// hold makes subsequent calls block until release is called.
func (f *fakeSynth) hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

func (f *fakeSynth) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

func (f *fakeSynth) failOn(text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[text] = err
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// calledWith returns the texts synthesized so far, in call order.
func (f *fakeSynth) calledWith() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, req.Text)
	gate := f.gate
	err := f.fail[req.Text]
	f.mu.Unlock()

	f.started <- req.Text

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &tts.Audio{
		Data:     []byte("audio:" + req.Text),
		MIMEType: "audio/mpeg",
		Duration: time.Second,
	}, nil
}

type nopControl struct{}

func (nopControl) Start() error  { return nil }
func (nopControl) Pause() error  { return nil }
func (nopControl) Resume() error { return nil }
func (nopControl) Stop() error   { return nil }

// instantOutput yields tracks that are ready at once and never end alone.
type instantOutput struct{}

func (instantOutput) Load(context.Context, playback.Clip) (playback.Track, error) {
	t := playback.NewSignalTrack(nopControl{})
	t.MarkReady()
	return t, nil
}

// eventLog records every bus event.
type eventLog struct {
	mu     sync.Mutex
	events []*events.Event
}

func (l *eventLog) listen(e *events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(t events.EventType) []*events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// statuses returns "messageID:status" for every playback status event.
func (l *eventLog) statuses() []string {
	var out []string
	for _, e := range l.ofType(events.EventPlaybackStatus) {
		out = append(out, e.MessageID+":"+e.Data.(events.PlaybackStatusData).Status)
	}
	return out
}

type harness struct {
	coord  *Coordinator
	synth  *fakeSynth
	player *playback.Controller
	log    *eventLog
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	bus := events.NewEventBus()
	log := &eventLog{}
	bus.SubscribeAll(log.listen)

	em := events.NewEmitter(bus, "test")
	player := playback.NewController(instantOutput{},
		playback.WithNotifier(em),
		playback.WithReadyTimeout(time.Second))
	synth := newFakeSynth()
	coord := New(synth, player, NewMode(false), WithConfig(cfg), WithEmitter(em))
	t.Cleanup(func() {
		synth.release()
		coord.Close()
		bus.Close()
	})
	return &harness{coord: coord, synth: synth, player: player, log: log}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchPause = time.Millisecond
	cfg.GenerationTimeout = 5 * time.Second
	return cfg
}

func (h *harness) addAssistant(t *testing.T, id, text string) {
	t.Helper()
	require.NoError(t, h.coord.AddMessage(context.Background(), Message{ID: id, Role: RoleAssistant, Text: text}))
}

func waitStarted(t *testing.T, f *fakeSynth) string {
	t.Helper()
	select {
	case text := <-f.started:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("synthesis was not called")
		return ""
	}
}

var errBoom = errors.New("boom")
