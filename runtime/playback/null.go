package playback

import (
	"context"
	"sync"
	"time"
)

// NullOutput plays nothing. Each track is ready at once and ends after the
// clip's duration, which pauses with the track. Clips without a duration end
// as soon as they start.
type NullOutput struct{}

// Load implements Output.
func (NullOutput) Load(_ context.Context, clip Clip) (Track, error) {
	ctl := &clockControl{remaining: clip.Duration}
	t := NewSignalTrack(ctl)
	ctl.track = t
	t.MarkReady()
	return t, nil
}

// clockControl ends its track when the remaining time has elapsed while
// running.
type clockControl struct {
	track *SignalTrack

	mu        sync.Mutex
	remaining time.Duration
	startedAt time.Time
	timer     *time.Timer
}

func (c *clockControl) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runLocked()
	return nil
}

func (c *clockControl) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return nil
	}
	if c.timer.Stop() {
		c.remaining -= time.Since(c.startedAt)
	}
	c.timer = nil
	return nil
}

func (c *clockControl) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		c.runLocked()
	}
	return nil
}

func (c *clockControl) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return nil
}

func (c *clockControl) runLocked() {
	c.startedAt = time.Now()
	c.timer = time.AfterFunc(max(c.remaining, 0), func() { c.track.MarkDone(nil) })
}
