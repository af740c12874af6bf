// Package playback owns the single active audio session.
//
// A Controller keeps at most one PlaybackSession alive: starting playback of
// a new clip first stops (pauses and rewinds) whatever was playing, and the
// "stopped" notification for the old session is always delivered before the
// new session's "loading"/"playing" notifications.
//
// Session states follow
//
//	none → loading → playing → {paused, stopped}
//	paused → playing | stopped
//	stopped, natural completion, failure → none
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
)

// DefaultReadyTimeout bounds the wait for a track's readiness signal before
// playback is attempted anyway.
const DefaultReadyTimeout = 2 * time.Second

// ErrPlaybackFailed is returned when a clip cannot be decoded or played.
var ErrPlaybackFailed = errors.New("playback failed")

// Notifier receives session transitions in order. It is called while the
// controller serializes transitions, so it must not call back into the
// Controller.
type Notifier interface {
	PlaybackStatus(messageID, status, handle string)
	PlaybackFailed(messageID, handle string, err error)
}

// Session is a snapshot of the active playback session.
type Session struct {
	MessageID string
	Handle    string
	Status    Status
}

type session struct {
	Session
	track Track
}

// Controller enforces the at-most-one-active-session rule.
type Controller struct {
	output       Output
	notifier     Notifier
	readyTimeout time.Duration

	// opMu serializes transitions together with their notifications.
	opMu sync.Mutex

	mu     sync.Mutex
	active *session
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets where transitions are reported.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithReadyTimeout sets the readiness wait bound.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.readyTimeout = d
		}
	}
}

// NewController creates a controller playing through output.
func NewController(output Output, opts ...Option) *Controller {
	c := &Controller{
		output:       output,
		readyTimeout: DefaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active returns the current session, if any.
func (c *Controller) Active() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Session{}, false
	}
	return c.active.Session, true
}

// StatusOf returns the status of messageID's session, StatusNone when that
// message is not the active one.
func (c *Controller) StatusOf(messageID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.MessageID != messageID {
		return StatusNone
	}
	return c.active.Status
}

// Play makes clip the active session.
//
// If clip's message is already playing (or loading) Play is a no-op; if it
// is paused Play resumes it. Otherwise any other session is stopped first,
// the clip is loaded, and playback starts once the track is ready or the
// ready timeout elapses, whichever comes first. Start is attempted exactly
// once per Play.
func (c *Controller) Play(ctx context.Context, clip Clip) error {
	if clip.MessageID == "" {
		return fmt.Errorf("%w: clip has no message id", ErrPlaybackFailed)
	}
	if len(clip.Data) == 0 {
		return fmt.Errorf("%w: clip has no audio", ErrPlaybackFailed)
	}

	s, done, err := c.load(ctx, clip)
	if done || err != nil {
		return err
	}

	timer := time.NewTimer(c.readyTimeout)
	defer timer.Stop()

	select {
	case <-s.track.Ready():
	case <-s.track.Done():
	case <-timer.C:
		logger.DebugContext(logger.WithMessageID(ctx, clip.MessageID),
			"Ready signal not observed, starting playback anyway", "timeout", c.readyTimeout)
	case <-ctx.Done():
		c.opMu.Lock()
		if c.current() == s {
			c.stopLocked()
		}
		c.opMu.Unlock()
		return ctx.Err()
	}

	return c.start(s)
}

// load handles the same-message shortcuts, stops the previous session and
// installs a loading session for clip. done reports that Play has nothing
// left to do.
func (c *Controller) load(ctx context.Context, clip Clip) (s *session, done bool, err error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if cur := c.current(); cur != nil && cur.MessageID == clip.MessageID {
		switch cur.Status {
		case StatusPlaying, StatusLoading:
			return nil, true, nil
		case StatusPaused:
			return nil, true, c.resumeLocked(cur)
		}
	}

	c.stopLocked()

	track, err := c.output.Load(ctx, clip)
	if err != nil {
		c.notifyStatus(clip.MessageID, StatusStopped, "")
		c.notifyFailed(clip.MessageID, "", err)
		logger.WarnContext(logger.WithMessageID(ctx, clip.MessageID), "Audio load failed", "error", err)
		return nil, true, fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	s = &session{
		Session: Session{MessageID: clip.MessageID, Handle: uuid.NewString(), Status: StatusLoading},
		track:   track,
	}
	c.mu.Lock()
	c.active = s
	c.mu.Unlock()
	c.notifyStatus(s.MessageID, StatusLoading, s.Handle)
	return s, false, nil
}

func (c *Controller) start(s *session) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	// Superseded or stopped while loading.
	if c.current() != s {
		return nil
	}

	if err := s.track.Start(); err != nil {
		if trackErr := s.track.Err(); trackErr != nil {
			err = trackErr
		}
		c.failLocked(s, err)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	c.setStatus(s, StatusPlaying)
	go c.watch(s)
	return nil
}

// watch returns the controller to none when s's track ends on its own.
func (c *Controller) watch(s *session) {
	<-s.track.Done()

	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.current() != s {
		return
	}
	if err := s.track.Err(); err != nil {
		c.failLocked(s, err)
		return
	}
	c.clear()
	c.notifyStatus(s.MessageID, StatusStopped, s.Handle)
}

// Pause pauses the active session if it is playing. A non-empty messageID
// restricts the call to that message's session. Pausing nothing is a no-op.
func (c *Controller) Pause(messageID string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	cur := c.current()
	if cur == nil || (messageID != "" && cur.MessageID != messageID) || cur.Status != StatusPlaying {
		return nil
	}
	if err := cur.track.Pause(); err != nil {
		c.failLocked(cur, err)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
	c.setStatus(cur, StatusPaused)
	return nil
}

// Resume resumes the active session if it is paused.
func (c *Controller) Resume(messageID string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	cur := c.current()
	if cur == nil || (messageID != "" && cur.MessageID != messageID) || cur.Status != StatusPaused {
		return nil
	}
	return c.resumeLocked(cur)
}

// Stop stops and rewinds the active session. A non-empty messageID restricts
// the call to that message's session. Stopping nothing is a no-op.
func (c *Controller) Stop(messageID string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	cur := c.current()
	if cur == nil || (messageID != "" && cur.MessageID != messageID) {
		return
	}
	c.stopLocked()
}

// Close stops any active session.
func (c *Controller) Close() {
	c.Stop("")
}

func (c *Controller) resumeLocked(s *session) error {
	if err := s.track.Resume(); err != nil {
		c.failLocked(s, err)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
	c.setStatus(s, StatusPlaying)
	return nil
}

func (c *Controller) stopLocked() {
	cur := c.current()
	if cur == nil {
		return
	}
	c.clear()
	if err := cur.track.Stop(); err != nil {
		logger.Warn("Stopping audio track failed", "message_id", cur.MessageID, "error", err)
	}
	c.notifyStatus(cur.MessageID, StatusStopped, cur.Handle)
}

func (c *Controller) failLocked(s *session, err error) {
	c.clear()
	_ = s.track.Stop()
	logger.Warn("Audio playback failed", "message_id", s.MessageID, "handle", s.Handle, "error", err)
	c.notifyStatus(s.MessageID, StatusStopped, s.Handle)
	c.notifyFailed(s.MessageID, s.Handle, err)
}

func (c *Controller) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) clear() {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
}

func (c *Controller) setStatus(s *session, status Status) {
	c.mu.Lock()
	s.Status = status
	c.mu.Unlock()
	c.notifyStatus(s.MessageID, status, s.Handle)
}

func (c *Controller) notifyStatus(messageID string, status Status, handle string) {
	if c.notifier != nil {
		c.notifier.PlaybackStatus(messageID, status.String(), handle)
	}
}

func (c *Controller) notifyFailed(messageID, handle string, err error) {
	if c.notifier != nil {
		c.notifier.PlaybackFailed(messageID, handle, err)
	}
}
