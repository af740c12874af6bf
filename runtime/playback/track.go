package playback

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Clip is one encoded audio unit to play.
type Clip struct {
	MessageID string
	Data      []byte
	MIMEType  string
	Duration  time.Duration
}

// Output abstracts the platform audio element.
type Output interface {
	// Load prepares clip for playback without starting it. The returned
	// track signals readiness once the audio is decodable.
	Load(ctx context.Context, clip Clip) (Track, error)
}

// Track is one loaded clip on an Output.
type Track interface {
	// Ready is closed once the clip can be played.
	Ready() <-chan struct{}
	// Done is closed when playback ends: natural completion, Stop, or failure.
	Done() <-chan struct{}
	// Err reports the failure that closed Done, if any.
	Err() error

	Start() error
	Pause() error
	Resume() error
	// Stop halts playback, rewinds and releases the track.
	Stop() error
}

// TrackControl is the platform side of a SignalTrack.
type TrackControl interface {
	Start() error
	Pause() error
	Resume() error
	Stop() error
}

// ErrTrackClosed is returned by operations on a track that already ended.
var ErrTrackClosed = errors.New("track closed")

// SignalTrack is a Track whose readiness and completion are reported from
// outside, by a player process watcher or a remote page.
type SignalTrack struct {
	ctl TrackControl

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once

	mu  sync.Mutex
	err error
}

// NewSignalTrack creates a track driven by ctl.
func NewSignalTrack(ctl TrackControl) *SignalTrack {
	return &SignalTrack{
		ctl:   ctl,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// MarkReady reports that the clip is decodable. Safe to call repeatedly.
func (t *SignalTrack) MarkReady() {
	t.readyOnce.Do(func() { close(t.ready) })
}

// MarkDone reports that playback ended, with err set on failure. Only the
// first call has an effect.
func (t *SignalTrack) MarkDone(err error) {
	t.doneOnce.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	})
}

// Ready implements Track.
func (t *SignalTrack) Ready() <-chan struct{} { return t.ready }

// Done implements Track.
func (t *SignalTrack) Done() <-chan struct{} { return t.done }

// Err implements Track.
func (t *SignalTrack) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *SignalTrack) closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Start implements Track.
func (t *SignalTrack) Start() error {
	if t.closed() {
		return ErrTrackClosed
	}
	return t.ctl.Start()
}

// Pause implements Track.
func (t *SignalTrack) Pause() error {
	if t.closed() {
		return ErrTrackClosed
	}
	return t.ctl.Pause()
}

// Resume implements Track.
func (t *SignalTrack) Resume() error {
	if t.closed() {
		return ErrTrackClosed
	}
	return t.ctl.Resume()
}

// Stop implements Track. Stopping an ended track is a no-op.
func (t *SignalTrack) Stop() error {
	if t.closed() {
		return nil
	}
	err := t.ctl.Stop()
	t.MarkDone(nil)
	return err
}
