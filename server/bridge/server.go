// Package bridge connects a training page to the speech runtime over a
// WebSocket. The page reports the messages it renders and the user's clicks;
// the core answers with playback status, control state, recognition results
// and, when audio plays in the page, the clips themselves.
package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/controls"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/speech"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/telemetry"
)

const (
	// DefaultPath is where the WebSocket endpoint is mounted.
	DefaultPath = "/bridge"

	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	// defaultIdleTimeout is the keep-alive idle limit for plain HTTP requests.
	defaultIdleTimeout = 120 * time.Second
)

// Speech is the part of the TTS coordinator the page drives.
type Speech interface {
	AddMessage(ctx context.Context, msg speech.Message) error
	RemoveMessage(messageID string)
	Play(ctx context.Context, messageID string) error
	Pause(messageID string) error
	Stop(messageID string)
	SetMode(ctx context.Context, enabled bool) error
	SetVoice(voice string)
	SetLanguage(language string)
	Mode() *speech.Mode
}

// Voice is the part of the voice input handler the page drives.
type Voice interface {
	Start(ctx context.Context) error
	Stop() error
	SetLanguage(lang string)
}

// Option configures a Server.
type Option func(*Server)

// WithVoice enables voice.* requests.
func WithVoice(v Voice) Option {
	return func(s *Server) { s.voice = v }
}

// WithRemoteOutput routes audio.* frames to out and makes connected pages
// its sinks.
func WithRemoteOutput(out *RemoteOutput) Option {
	return func(s *Server) { s.remote = out }
}

// WithPath mounts the WebSocket endpoint at path.
func WithPath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.path = path
		}
	}
}

// WithAllowedOrigins accepts upgrades from the listed page origins in
// addition to same-origin requests.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithTracerProvider traces connections with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracer = telemetry.Tracer(tp) }
}

// WithHandler mounts an extra HTTP handler, such as /metrics.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) { s.extra = append(s.extra, route{pattern, h}) }
}

// WithClientHook is called with the connection context each time a page
// becomes the active one, and with the client count whenever it changes.
func WithClientHook(onActive func(ctx context.Context), onCount func(n int)) Option {
	return func(s *Server) {
		s.onActive = onActive
		s.onCount = onCount
	}
}

type route struct {
	pattern string
	handler http.Handler
}

// Server serves the page bridge.
type Server struct {
	speech  Speech
	voice   Voice
	remote  *RemoteOutput
	binding *controls.Binding

	path     string
	origins  []string
	extra    []route
	tracer   trace.Tracer
	onActive func(ctx context.Context)
	onCount  func(n int)
	upgrader websocket.Upgrader

	life   context.Context //nolint:containedctx // server lifetime
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients []*client
	unsubs  []func()

	httpSrvMu sync.Mutex
	httpSrv   *http.Server
}

// NewServer creates a bridge in front of sp.
func NewServer(sp Speech, opts ...Option) *Server {
	s := &Server{
		speech: sp,
		path:   DefaultPath,
		tracer: telemetry.Tracer(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.life, s.cancel = context.WithCancel(context.Background())
	s.binding = controls.NewBinding(s)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Binding returns the control binding rendered to the pages.
func (s *Server) Binding() *controls.Binding { return s.binding }

// Attach subscribes the bridge and its control binding to bus.
func (s *Server) Attach(bus *events.EventBus) {
	// Status frames precede the control views they cause.
	unsubs := []func(){
		bus.Subscribe(events.EventPlaybackStatus, s.onPlaybackStatus),
		bus.Subscribe(events.EventModeChanged, s.onModeChanged),
		bus.Subscribe(events.EventGenerationFailed, s.onGenerationFailed),
		bus.Subscribe(events.EventPlaybackFailed, s.onPlaybackFailed),
		bus.Subscribe(events.EventRecognitionStarted, s.onRecognitionStarted),
		bus.Subscribe(events.EventRecognitionResult, s.onRecognitionResult),
		bus.Subscribe(events.EventRecognitionError, s.onRecognitionError),
		bus.Subscribe(events.EventRecognitionEnded, s.onRecognitionEnded),
		s.binding.Listen(bus),
	}
	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsubs...)
	s.mu.Unlock()
}

// Handler returns the bridge HTTP handler: the WebSocket endpoint, /health
// and any extra handlers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+s.path, telemetry.TraceMiddleware(http.HandlerFunc(s.handleUpgrade)))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	for _, r := range s.extra {
		mux.Handle(r.pattern, r.handler)
	}
	return otelhttp.NewHandler(mux, "speech-bridge")
}

// ListenAndServe serves the bridge on addr.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves the bridge on ln. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	s.httpSrvMu.Lock()
	s.httpSrv = srv
	s.httpSrvMu.Unlock()

	return srv.Serve(ln)
}

// Shutdown stops accepting pages, disconnects the connected ones and waits
// for their pending requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var firstErr error
	s.httpSrvMu.Lock()
	srv := s.httpSrv
	s.httpSrvMu.Unlock()
	if srv != nil {
		firstErr = srv.Shutdown(ctx)
	}

	s.mu.Lock()
	clients := slices.Clone(s.clients)
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	for _, c := range clients {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if firstErr == nil {
			firstErr = ctx.Err()
		}
	}
	return firstErr
}

// Clients returns the number of connected pages.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.origins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.life.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logger.Warn("Bridge upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	id := uuid.NewString()
	tc := telemetry.TraceContextFromContext(r.Context())

	// The request context ends with this handler; keep its trace values only.
	ctx := logger.WithClientID(context.WithoutCancel(r.Context()), id)
	ctx, span := s.tracer.Start(ctx, "bridge.client",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("bridge.client_id", id)),
	)
	c := newClient(ctx, id, conn, s)
	stop := context.AfterFunc(s.life, c.close)

	logger.InfoContext(ctx, "Page connected", append([]any{"remote", r.RemoteAddr}, tc.LogAttrs()...)...)
	s.register(c)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer span.End()
		defer stop()
		c.run()
		logger.InfoContext(ctx, "Page disconnected")
	}()
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients = append(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()

	if s.remote != nil {
		s.remote.Attach(c)
	}
	if s.onActive != nil {
		s.onActive(c.ctx)
	}
	if s.onCount != nil {
		s.onCount(n)
	}
	s.sendSnapshot(c)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	s.clients = slices.DeleteFunc(s.clients, func(x *client) bool { return x == c })
	n := len(s.clients)
	var next *client
	if n > 0 {
		next = s.clients[n-1]
	}
	s.mu.Unlock()

	if s.remote != nil && s.remote.Detach(c) && next != nil {
		s.remote.Attach(next)
		if s.onActive != nil {
			s.onActive(next.ctx)
		}
	}
	if s.onCount != nil {
		s.onCount(n)
	}
}

// sendSnapshot brings a new page up to date.
func (s *Server) sendSnapshot(c *client) {
	_ = c.SendFrame(FrameSnapshot, SnapshotPayload{
		TTSEnabled:      s.speech.Mode().Enabled(),
		ControlsVisible: s.binding.Visible(),
		Controls:        s.binding.Views(),
	})
}

func (s *Server) broadcast(typ string, data any) {
	msg, err := encodeFrame(typ, data)
	if err != nil {
		logger.Error("Bridge frame encoding failed", "type", typ, "error", err)
		return
	}
	s.mu.Lock()
	clients := slices.Clone(s.clients)
	s.mu.Unlock()
	for _, c := range clients {
		_ = c.enqueue(msg)
	}
}

// spawn runs fn outside the client's read loop, tracked for Shutdown.
func (s *Server) spawn(fn func()) {
	if s.life.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func replyError(c *client, request string, err error) {
	_ = c.SendFrame(FrameError, RequestError{Request: request, Message: err.Error()})
}

var errVoiceDisabled = errors.New("voice input is not enabled")
