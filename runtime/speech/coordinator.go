// Package speech coordinates text-to-speech generation and playback across
// the messages of one conversation view.
//
// The Coordinator owns the view's audio records (one per message at most),
// the TTS mode flag and the backlog sweep that runs when TTS is enabled.
// Actual playback is delegated to a Player, which guarantees that at most
// one session plays at any time.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	pkgerrors "github.com/deathnote2501/fia-v3.0-sub001/pkg/errors"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/playback"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/telemetry"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/textclean"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/tts"
)

// Coordinator errors.
var (
	// ErrEmptyInput marks text with nothing speakable. Operations given such
	// text return nil; the sentinel is only used internally and in logs.
	ErrEmptyInput = errors.New("nothing to speak")

	// ErrGenerationFailed is returned when synthesis for a message failed.
	// No record is stored, so a later request retries.
	ErrGenerationFailed = errors.New("audio generation failed")

	// ErrUnknownMessage is returned by Play for a message that is neither
	// cached nor rendered.
	ErrUnknownMessage = errors.New("unknown message")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("coordinator closed")

	errMessageRemoved = fmt.Errorf("%w: removed during generation", ErrUnknownMessage)
	errMessageEdited  = errors.New("message edited during generation")
)

// maxEditRetries bounds how often a message edited mid-synthesis is
// synthesized again from its new text.
const maxEditRetries = 2

// Defaults.
const (
	DefaultVoice             = tts.VoiceNova
	DefaultLanguage          = "fr-FR"
	DefaultBatchSize         = 3
	DefaultBatchPause        = 500 * time.Millisecond
	DefaultGenerationTimeout = 45 * time.Second
)

// Player is the playback side of the coordinator. *playback.Controller
// implements it.
type Player interface {
	Play(ctx context.Context, clip playback.Clip) error
	Pause(messageID string) error
	Stop(messageID string)
	StatusOf(messageID string) playback.Status
}

// Config holds the coordinator's tunables.
type Config struct {
	Voice    string
	Language string

	// BatchSize successful generations are followed by a BatchPause during
	// the backlog sweep.
	BatchSize  int
	BatchPause time.Duration

	// GenerationTimeout bounds one synthesis call.
	GenerationTimeout time.Duration
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		Voice:             DefaultVoice,
		Language:          DefaultLanguage,
		BatchSize:         DefaultBatchSize,
		BatchPause:        DefaultBatchPause,
		GenerationTimeout: DefaultGenerationTimeout,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchPause < 0 {
		c.BatchPause = 0
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = d.GenerationTimeout
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig sets the tunables.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) {
		c.cfg = cfg
	}
}

// WithEmitter sets where notifications are published.
func WithEmitter(em *events.Emitter) Option {
	return func(c *Coordinator) {
		c.emitter = em
	}
}

// WithTracerProvider traces synthesis calls.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		c.tracer = telemetry.Tracer(tp)
	}
}

// WithConversation shares an existing conversation.
func WithConversation(conv *Conversation) Option {
	return func(c *Coordinator) {
		c.conv = conv
	}
}

// Coordinator orchestrates generation and playback for one conversation view.
type Coordinator struct {
	synth   tts.Service
	player  Player
	mode    *Mode
	conv    *Conversation
	store   *RecordStore
	emitter *events.Emitter
	tracer  trace.Tracer
	group   singleflight.Group

	// life bounds detached generations and sweeps; cancelled by Close.
	life   context.Context //nolint:containedctx // lifetime of the view
	cancel context.CancelFunc

	sweepMu sync.Mutex

	mu     sync.RWMutex
	cfg    Config
	closed bool
}

// New creates a coordinator. mode is owned by the caller's view and may be
// shared with readers such as the control binding.
func New(synth tts.Service, player Player, mode *Mode, opts ...Option) *Coordinator {
	if mode == nil {
		mode = NewMode(false)
	}
	c := &Coordinator{
		synth:  synth,
		player: player,
		mode:   mode,
		store:  NewRecordStore(),
		cfg:    DefaultConfig(),
		tracer: telemetry.Tracer(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.conv == nil {
		c.conv = NewConversation()
	}
	c.cfg.applyDefaults()
	c.life, c.cancel = context.WithCancel(context.Background())
	return c
}

// Mode returns the mode flag.
func (c *Coordinator) Mode() *Mode { return c.mode }

// Conversation returns the rendered messages.
func (c *Coordinator) Conversation() *Conversation { return c.conv }

// Record returns the cached audio of messageID.
func (c *Coordinator) Record(messageID string) (Record, bool) {
	return c.store.Get(messageID)
}

// SetVoice changes the voice of future generations. Cached records keep the
// voice they were generated with.
func (c *Coordinator) SetVoice(voice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Voice = voice
}

// SetLanguage changes the language of future generations.
func (c *Coordinator) SetLanguage(language string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Language = language
}

// Voice returns the current voice and language defaults.
func (c *Coordinator) Voice() (voice, language string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Voice, c.cfg.Language
}

func (c *Coordinator) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *Coordinator) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// SetMode switches TTS on or off. Enabling runs the backlog sweep before
// returning; disabling stops active playback but leaves in-flight
// generations running. Setting the current value again does nothing.
func (c *Coordinator) SetMode(ctx context.Context, enabled bool) error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.mode.set(enabled) {
		return nil
	}
	logger.InfoContext(ctx, "TTS mode changed", "enabled", enabled)
	c.emitter.ModeChanged(enabled)

	if !enabled {
		c.player.Stop("")
		return nil
	}
	c.Sweep(ctx)
	return nil
}

// AddMessage registers a rendered message. A new assistant message is
// voiced and auto-played right away when TTS is enabled.
func (c *Coordinator) AddMessage(ctx context.Context, msg Message) error {
	if c.isClosed() {
		return ErrClosed
	}
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	isNew := c.conv.Add(msg)
	if !isNew {
		// Edited text invalidates cached audio.
		if rec, ok := c.store.Get(msg.ID); ok && rec.SourceText != msg.Text {
			c.store.Delete(msg.ID)
		}
		return nil
	}
	if msg.Role != RoleAssistant || !c.mode.Enabled() {
		return nil
	}
	return c.GenerateAndPlay(ctx, msg.ID, msg.Text, true)
}

// RemoveMessage drops a message from the view together with its record and
// stops its playback. A generation still in flight for it is discarded.
func (c *Coordinator) RemoveMessage(messageID string) {
	c.conv.Remove(messageID)
	c.store.Delete(messageID)
	c.player.Stop(messageID)
}

// GenerateAndPlay synthesizes audio for messageID and optionally plays it.
//
// Blank text is ignored. When TTS is disabled autoPlay is downgraded to
// false; the audio is still generated and cached for manual playback. A
// message with a record is never synthesized again, and concurrent requests
// for the same message share one synthesis call.
func (c *Coordinator) GenerateAndPlay(ctx context.Context, messageID, text string, autoPlay bool) error {
	if c.isClosed() {
		return ErrClosed
	}
	ctx = logger.WithMessageID(ctx, messageID)

	if textclean.IsEmpty(text) {
		logger.DebugContext(ctx, "Skipping audio generation", "reason", ErrEmptyInput)
		return nil
	}
	if autoPlay && !c.mode.Enabled() {
		autoPlay = false
	}
	if !c.conv.Has(messageID) {
		c.conv.Add(Message{ID: messageID, Role: RoleAssistant, Text: text})
	}

	rec, err := c.recordFor(ctx, messageID, text)
	if errors.Is(err, errMessageRemoved) || errors.Is(err, ErrEmptyInput) {
		return nil
	}
	if err != nil {
		return err
	}
	// Mode may have been switched off while generating.
	if !autoPlay || !c.mode.Enabled() {
		return nil
	}
	return c.playRecord(ctx, rec)
}

// Play plays messageID, generating its audio first when it has no record.
// Playing the message that is already playing does nothing; a paused one
// resumes. TTS mode never blocks manual playback.
func (c *Coordinator) Play(ctx context.Context, messageID string) error {
	if c.isClosed() {
		return ErrClosed
	}
	ctx = logger.WithMessageID(ctx, messageID)

	rec, ok := c.store.Get(messageID)
	if !ok {
		msg, known := c.conv.Get(messageID)
		if !known {
			return fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
		}
		if textclean.IsEmpty(msg.Text) {
			logger.DebugContext(ctx, "Nothing to play", "reason", ErrEmptyInput)
			return nil
		}
		var err error
		rec, err = c.recordFor(ctx, messageID, msg.Text)
		if errors.Is(err, ErrEmptyInput) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return c.playRecord(ctx, rec)
}

// Pause pauses messageID if it is the one playing.
func (c *Coordinator) Pause(messageID string) error {
	return c.player.Pause(messageID)
}

// Stop stops messageID if it is the active session.
func (c *Coordinator) Stop(messageID string) {
	c.player.Stop(messageID)
}

// Status returns the playback status of messageID.
func (c *Coordinator) Status(messageID string) playback.Status {
	return c.player.StatusOf(messageID)
}

// Close stops playback and abandons in-flight generations. The view's
// records are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.player.Stop("")
	c.store.Clear()
}

func (c *Coordinator) playRecord(ctx context.Context, rec Record) error {
	err := c.player.Play(ctx, playback.Clip{
		MessageID: rec.MessageID,
		Data:      rec.Audio,
		MIMEType:  rec.MIMEType,
		Duration:  rec.Duration,
	})
	if err != nil {
		return pkgerrors.New(pkgerrors.ComponentCoordinator, "Play", err)
	}
	return nil
}

// recordFor returns the record of messageID for its current text. When the
// text changes while synthesis is in flight, the stale audio is dropped and
// the new text is synthesized.
func (c *Coordinator) recordFor(ctx context.Context, messageID, text string) (Record, error) {
	for attempt := 0; ; attempt++ {
		rec, err := c.ensureRecord(ctx, messageID, text)
		if !errors.Is(err, errMessageEdited) || attempt == maxEditRetries {
			return rec, err
		}
		msg, ok := c.conv.Get(messageID)
		if !ok {
			return Record{}, errMessageRemoved
		}
		if textclean.IsEmpty(msg.Text) {
			return Record{}, ErrEmptyInput
		}
		logger.DebugContext(ctx, "Message edited during generation, synthesizing again")
		text = msg.Text
	}
}

// ensureRecord returns the cached record or synthesizes one. Concurrent
// callers for the same message share a single synthesis; a caller whose ctx
// ends stops waiting but the generation completes and is cached.
func (c *Coordinator) ensureRecord(ctx context.Context, messageID, text string) (Record, error) {
	if rec, ok := c.store.Get(messageID); ok {
		return rec, nil
	}

	ch := c.group.DoChan(messageID, func() (any, error) {
		if rec, ok := c.store.Get(messageID); ok {
			return rec, nil
		}
		return c.generate(ctx, messageID, text)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Record{}, res.Err
		}
		return res.Val.(Record), nil
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

// generate performs one synthesis call. It runs under the coordinator's
// lifetime rather than the caller's context so that disabling TTS or a
// departing caller does not cancel it.
func (c *Coordinator) generate(callerCtx context.Context, messageID, text string) (Record, error) {
	cfg := c.config()
	clean := textclean.Clean(text)
	provider := c.synth.Name()

	ctx, cancel := context.WithTimeout(c.life, cfg.GenerationTimeout)
	defer cancel()
	ctx = logger.WithProvider(logger.WithMessageID(ctx, messageID), provider)
	ctx = trace.ContextWithSpanContext(ctx, trace.SpanContextFromContext(callerCtx))

	ctx, span := c.tracer.Start(ctx, "speech.generate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("speech.message_id", messageID),
			attribute.String("speech.provider", provider),
			attribute.String("speech.voice", cfg.Voice),
			attribute.String("speech.language", cfg.Language),
			attribute.Int("speech.chars", len(clean)),
		),
	)
	defer span.End()

	c.emitter.GenerationStarted(messageID, provider, cfg.Voice, cfg.Language, len(clean))
	start := time.Now()

	audio, err := c.synth.Synthesize(ctx, tts.Request{Text: clean, Voice: cfg.Voice, Language: cfg.Language})
	latency := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.SynthesisError(ctx, provider, err, "retryable", tts.IsRetryable(err), "latency", latency)
		c.emitter.GenerationFailed(messageID, provider, err, latency)
		return Record{}, fmt.Errorf("%w: %w", ErrGenerationFailed,
			pkgerrors.New(pkgerrors.ComponentCoordinator, "GenerateAndPlay", err).
				WithDetails(map[string]any{"message_id": messageID}))
	}

	// The message may have left the view or changed while we were waiting.
	if err := c.checkCurrent(messageID, text); err != nil {
		logger.DebugContext(ctx, "Discarding stale audio", "reason", err)
		return Record{}, err
	}

	rec, stored := c.store.Put(Record{
		MessageID:  messageID,
		Audio:      audio.Data,
		MIMEType:   audio.MIMEType,
		Duration:   audio.Duration,
		SourceText: text,
		Voice:      cfg.Voice,
		Language:   cfg.Language,
		CreatedAt:  time.Now(),
	})
	if stored {
		// An edit may have landed between the check and the store; AddMessage
		// only invalidates records it can already see.
		if err := c.checkCurrent(messageID, text); err != nil {
			c.store.Delete(messageID)
			logger.DebugContext(ctx, "Discarding stale audio", "reason", err)
			return Record{}, err
		}
		span.SetAttributes(attribute.Int("speech.audio_bytes", len(audio.Data)))
		span.SetStatus(codes.Ok, "")
		logger.DebugContext(ctx, "Audio generated", "bytes", len(audio.Data), "latency", latency)
		c.emitter.GenerationCompleted(messageID, events.GenerationCompletedData{
			Provider:      provider,
			Duration:      latency,
			AudioBytes:    len(audio.Data),
			AudioDuration: audio.Duration,
			MIMEType:      audio.MIMEType,
		})
	}
	return rec, nil
}

// checkCurrent reports whether audio synthesized from text may still be
// cached for messageID.
func (c *Coordinator) checkCurrent(messageID, text string) error {
	msg, ok := c.conv.Get(messageID)
	if !ok || c.isClosed() {
		return errMessageRemoved
	}
	if msg.Text != text {
		return errMessageEdited
	}
	return nil
}
