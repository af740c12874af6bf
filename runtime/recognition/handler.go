package recognition

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/deathnote2501/fia-v3.0-sub001/pkg/errors"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
)

// DefaultLanguage is the recognition language of a new Handler.
const DefaultLanguage = "fr-FR"

// State is the handler's position in the voice input state machine.
type State int

// Handler states.
const (
	StateIdle State = iota
	StateCheckingSupport
	StateAwaitingPermission
	StateReady
	StateListening
	StateUnsupported
)

var stateNames = [...]string{
	StateIdle:               "idle",
	StateCheckingSupport:    "checking-support",
	StateAwaitingPermission: "awaiting-permission",
	StateReady:              "ready",
	StateListening:          "listening",
	StateUnsupported:        "unsupported",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Callbacks receive the outcome of recognition sessions. Any of them may be
// nil. They run on the session's event goroutine, one at a time.
type Callbacks struct {
	OnStart  func()
	OnResult func(transcript string, isFinal bool)
	OnError  func(code Code, message string)
	OnEnd    func()
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLanguage sets the initial recognition language.
func WithLanguage(lang string) HandlerOption {
	return func(h *Handler) {
		h.language = lang
	}
}

// WithCallbacks sets the session callbacks.
func WithCallbacks(cb Callbacks) HandlerOption {
	return func(h *Handler) {
		h.callbacks = cb
	}
}

// WithEmitter publishes recognition notifications on a bus.
func WithEmitter(em *events.Emitter) HandlerOption {
	return func(h *Handler) {
		h.emitter = em
	}
}

// WithRecognizerConfig overrides the recognizer configuration.
func WithRecognizerConfig(cfg Config) HandlerOption {
	return func(h *Handler) {
		h.config = cfg
	}
}

// Handler drives single-shot voice input on a Platform.
type Handler struct {
	platform  Platform
	callbacks Callbacks
	emitter   *events.Emitter
	config    Config

	// Sessions outlive the Start call; Close ends them.
	life   context.Context //nolint:containedctx // lifetime of the handler
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	language      string
	checked       bool
	supported     bool
	hasPermission bool
	starting      bool
	recognizer    Recognizer
	sessionID     string
}

// NewHandler creates a handler for platform.
func NewHandler(platform Platform, opts ...HandlerOption) *Handler {
	h := &Handler{
		platform: platform,
		language: DefaultLanguage,
		config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.life, h.cancel = context.WithCancel(context.Background())
	return h
}

// State returns the current state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Language returns the language used by future sessions.
func (h *Handler) Language() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.language
}

// SetLanguage changes the language of future sessions. A session in
// progress keeps its language.
func (h *Handler) SetLanguage(lang string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.language = lang
}

// HasPermission reports the cached microphone permission.
func (h *Handler) HasPermission() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasPermission
}

// CheckSupport probes the platform once and caches the answer. An
// unsupported platform leaves the handler in StateUnsupported for good.
func (h *Handler) CheckSupport() bool {
	h.mu.Lock()
	if h.checked {
		ok := h.supported
		h.mu.Unlock()
		return ok
	}
	prev := h.state
	h.state = StateCheckingSupport
	h.mu.Unlock()

	ok := h.platform != nil && h.platform.Supported()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checked = true
	h.supported = ok
	switch {
	case !ok:
		h.state = StateUnsupported
		logger.Warn("Speech recognition is not supported on this platform")
	case h.state == StateCheckingSupport:
		h.state = prev
	}
	return ok
}

// RequestPermission probes the microphone and releases it right away. The
// result is cached. A refusal returns ErrPermissionDenied wrapping the
// platform's reason.
func (h *Handler) RequestPermission(ctx context.Context) error {
	if !h.CheckSupport() {
		return ErrUnsupported
	}

	h.mu.Lock()
	if h.state == StateListening {
		h.mu.Unlock()
		return nil
	}
	h.state = StateAwaitingPermission
	h.mu.Unlock()

	err := h.platform.ProbeMicrophone(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.hasPermission = err == nil
	if h.state == StateAwaitingPermission {
		if err == nil {
			h.state = StateReady
		} else {
			h.state = StateIdle
		}
	}
	if err != nil {
		logger.WarnContext(ctx, "Microphone permission denied", "error", err)
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return nil
}

// Start begins listening. It returns ErrUnsupported without asking for
// permission when recognition is unavailable, and ErrPermissionDenied when
// the microphone is refused. Starting while a session is listening or being
// set up does nothing. OnStart fires once the platform confirms.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	switch {
	case h.starting || h.state == StateListening:
		h.mu.Unlock()
		return nil
	case h.state == StateUnsupported:
		h.mu.Unlock()
		return ErrUnsupported
	}
	h.starting = true
	h.mu.Unlock()

	err := h.start(ctx)

	h.mu.Lock()
	h.starting = false
	if err != nil && h.state != StateUnsupported {
		h.state = StateIdle
	}
	h.mu.Unlock()
	return err
}

func (h *Handler) start(ctx context.Context) error {
	if !h.CheckSupport() {
		return ErrUnsupported
	}
	if !h.HasPermission() {
		if err := h.RequestPermission(ctx); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.state = StateReady
	lang := h.language
	rec := h.recognizer
	h.mu.Unlock()

	if rec == nil {
		var err error
		if rec, err = h.platform.NewRecognizer(h.config); err != nil {
			return pkgerrors.New(pkgerrors.ComponentRecognition, "NewRecognizer", err)
		}
		h.mu.Lock()
		h.recognizer = rec
		h.mu.Unlock()
	}

	sid := uuid.NewString()
	sessionCtx := logger.WithRecognitionID(h.life, sid)
	ch, err := rec.Start(sessionCtx, lang)
	if err != nil {
		logger.WarnContext(sessionCtx, "Recognition failed to start", "error", err)
		return pkgerrors.New(pkgerrors.ComponentRecognition, "Start", err)
	}

	h.mu.Lock()
	h.state = StateListening
	h.sessionID = sid
	h.mu.Unlock()

	logger.DebugContext(sessionCtx, "Recognition session started", "language", lang)
	go h.consume(sessionCtx, sid, lang, ch)
	return nil
}

// Stop asks the listening session to finish. The state changes when the
// platform reports Ended, not here.
func (h *Handler) Stop() error {
	h.mu.Lock()
	if h.state != StateListening || h.recognizer == nil {
		h.mu.Unlock()
		return nil
	}
	rec := h.recognizer
	h.mu.Unlock()

	if err := rec.Stop(); err != nil {
		return pkgerrors.New(pkgerrors.ComponentRecognition, "Stop", err)
	}
	return nil
}

// Close aborts any session and releases the handler.
func (h *Handler) Close() {
	h.cancel()
}

func (h *Handler) consume(ctx context.Context, sid, lang string, ch <-chan Event) {
	started := false
	for ev := range ch {
		switch e := ev.(type) {
		case Started:
			if started {
				continue
			}
			started = true
			h.emitter.RecognitionStarted(sid, lang)
			h.invoke(ctx, "OnStart", func() {
				if h.callbacks.OnStart != nil {
					h.callbacks.OnStart()
				}
			})

		case Result:
			transcript, isFinal := Aggregate(e)
			if transcript == "" {
				logger.DebugContext(ctx, "Ignoring empty recognition result")
				continue
			}
			h.emitter.RecognitionResult(sid, transcript, isFinal)
			h.invoke(ctx, "OnResult", func() {
				if h.callbacks.OnResult != nil {
					h.callbacks.OnResult(transcript, isFinal)
				}
			})

		case Error:
			code := e.Code
			if !code.Known() {
				code = CodeUnknown
			}
			if code == CodeNotAllowed {
				h.mu.Lock()
				h.hasPermission = false
				h.mu.Unlock()
			}
			msg := code.Message()
			logger.WarnContext(ctx, "Recognition error", "code", string(code), "detail", e.Detail)
			h.emitter.RecognitionError(sid, string(code), msg)
			h.invoke(ctx, "OnError", func() {
				if h.callbacks.OnError != nil {
					h.callbacks.OnError(code, msg)
				}
			})

		case Ended:
			h.finish(ctx, sid)
			drain(ch)
			return
		}
	}
	// Channel closed without Ended.
	h.finish(ctx, sid)
}

func (h *Handler) finish(ctx context.Context, sid string) {
	h.mu.Lock()
	if h.sessionID == sid {
		h.sessionID = ""
		if h.state == StateListening {
			h.state = StateIdle
		}
	}
	h.mu.Unlock()

	logger.DebugContext(ctx, "Recognition session ended")
	h.emitter.RecognitionEnded(sid)
	h.invoke(ctx, "OnEnd", func() {
		if h.callbacks.OnEnd != nil {
			h.callbacks.OnEnd()
		}
	})
}

// invoke runs a caller callback; a panic is logged instead of killing the
// session goroutine.
func (h *Handler) invoke(ctx context.Context, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Recognition callback panicked", "callback", name, "panic", r)
		}
	}()
	fn()
}

func drain(ch <-chan Event) {
	go func() {
		for range ch {
		}
	}()
}
