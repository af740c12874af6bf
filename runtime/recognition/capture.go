package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/audio"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/stt"
)

// DefaultRecorderCommand records 16 kHz mono 16-bit PCM to stdout.
var DefaultRecorderCommand = []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", "16000", "-c", "1"}

// Capture defaults.
const (
	DefaultProbeTimeout      = 2 * time.Second
	DefaultTranscribeTimeout = 30 * time.Second

	// 100ms of 16 kHz 16-bit mono.
	captureChunkBytes = 3200
	// A microphone probe must deliver 20ms of audio.
	probeBytes = 640

	recorderWaitDelay = time.Second
)

var errSessionRunning = errors.New("a recognition session is already running")

// CaptureOption configures a CaptureEngine.
type CaptureOption func(*CaptureEngine)

// WithRecorderCommand sets the recorder argv. It must write raw 16-bit
// little-endian mono PCM at the endpoint sample rate to stdout.
func WithRecorderCommand(command ...string) CaptureOption {
	return func(e *CaptureEngine) {
		if len(command) > 0 {
			e.command = command
		}
	}
}

// WithEndpointParams sets voice activity and utterance limits.
func WithEndpointParams(p audio.EndpointParams) CaptureOption {
	return func(e *CaptureEngine) {
		e.endpoint = p
	}
}

// WithProbeTimeout bounds the microphone permission probe.
func WithProbeTimeout(d time.Duration) CaptureOption {
	return func(e *CaptureEngine) {
		e.probeTimeout = d
	}
}

// WithTranscribeTimeout bounds one transcription.
func WithTranscribeTimeout(d time.Duration) CaptureOption {
	return func(e *CaptureEngine) {
		e.transcribeTimeout = d
	}
}

// CaptureEngine is a Platform that records the local microphone through an
// external command and transcribes each utterance with an stt.Service. Each
// session yields at most one final Result.
type CaptureEngine struct {
	stt               stt.Service
	command           []string
	endpoint          audio.EndpointParams
	probeTimeout      time.Duration
	transcribeTimeout time.Duration
}

// NewCaptureEngine creates a capture platform transcribing with svc.
func NewCaptureEngine(svc stt.Service, opts ...CaptureOption) *CaptureEngine {
	e := &CaptureEngine{
		stt:               svc,
		command:           DefaultRecorderCommand,
		endpoint:          audio.DefaultEndpointParams(),
		probeTimeout:      DefaultProbeTimeout,
		transcribeTimeout: DefaultTranscribeTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supported reports whether a transcriber is configured and the recorder
// binary exists.
func (e *CaptureEngine) Supported() bool {
	if e.stt == nil {
		return false
	}
	_, err := exec.LookPath(e.command[0])
	return err == nil
}

// ProbeMicrophone starts the recorder, waits for the first audio and stops it.
func (e *CaptureEngine) ProbeMicrophone(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.command[0], e.command[1:]...)
	cmd.WaitDelay = recorderWaitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting recorder: %w", err)
	}

	buf := make([]byte, probeBytes)
	_, readErr := io.ReadFull(stdout, buf)
	_ = cmd.Process.Kill()
	_ = cmd.Wait()

	if readErr != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("microphone unavailable: %s", msg)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("microphone unavailable: %w", ctx.Err())
		}
		return fmt.Errorf("microphone unavailable: %w", readErr)
	}
	return nil
}

// NewRecognizer returns a recognizer bound to this engine. Interim results
// are never produced.
func (e *CaptureEngine) NewRecognizer(cfg Config) (Recognizer, error) {
	if e.stt == nil {
		return nil, ErrUnsupported
	}
	return &captureRecognizer{engine: e, config: cfg}, nil
}

type captureRecognizer struct {
	engine *CaptureEngine
	config Config

	mu     sync.Mutex
	active bool
	stop   chan struct{}
}

func (r *captureRecognizer) Start(ctx context.Context, language string) (<-chan Event, error) {
	ep, err := audio.NewEndpointer(r.engine.endpoint)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil, errSessionRunning
	}

	cmd := exec.Command(r.engine.command[0], r.engine.command[1:]...) //nolint:gosec // configured recorder
	cmd.WaitDelay = recorderWaitDelay
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting recorder: %w", err)
	}

	r.active = true
	r.stop = make(chan struct{})
	ch := make(chan Event, 4)

	s := &captureSession{
		engine:   r.engine,
		cmd:      cmd,
		stdout:   stdout,
		stderr:   stderr,
		ep:       ep,
		language: language,
		stop:     r.stop,
		events:   ch,
	}
	go func() {
		s.run(ctx)
		r.mu.Lock()
		r.active = false
		r.stop = nil
		r.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (r *captureRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		select {
		case <-r.stop:
		default:
			close(r.stop)
		}
	}
	return nil
}

type captureSession struct {
	engine   *CaptureEngine
	cmd      *exec.Cmd
	stdout   io.Reader
	stderr   *bytes.Buffer
	ep       *audio.Endpointer
	language string
	stop     <-chan struct{}
	events   chan<- Event
}

type chunkResult struct {
	data []byte
	err  error
}

// run records until the endpointer decides, Stop is called or ctx ends, then
// reports the outcome followed by Ended.
func (s *captureSession) run(ctx context.Context) {
	s.events <- Started{}
	defer func() { s.events <- Ended{} }()

	chunks := make(chan chunkResult)
	readerDone := make(chan struct{})
	go s.read(chunks, readerDone)

	var (
		decision = audio.DecisionContinue
		readErr  error
		aborted  bool
		stopped  bool
	)
loop:
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				break loop
			}
			if c.err != nil {
				readErr = c.err
				break loop
			}
			if decision = s.ep.Feed(c.data); decision != audio.DecisionContinue {
				break loop
			}
		case <-s.stop:
			stopped = true
			break loop
		case <-ctx.Done():
			aborted = true
			break loop
		}
	}

	s.kill()
	close(readerDone)

	logger.DebugContext(ctx, "Capture finished",
		"decision", decision.String(),
		"captured", s.ep.Duration(),
		"had_speech", s.ep.HadSpeech())

	switch {
	case aborted:
		s.events <- Error{Code: CodeAborted, Detail: ctx.Err().Error()}
	case len(s.ep.Audio()) == 0 && !stopped:
		s.events <- Error{Code: CodeAudioCapture, Detail: s.captureDetail(readErr)}
	case !s.ep.HadSpeech():
		s.events <- Error{Code: CodeNoSpeech}
	default:
		s.events <- s.transcribe(ctx)
	}
}

func (s *captureSession) read(out chan<- chunkResult, done <-chan struct{}) {
	defer close(out)
	for {
		buf := make([]byte, captureChunkBytes)
		n, err := io.ReadFull(s.stdout, buf)
		if n > 0 {
			select {
			case out <- chunkResult{data: buf[:n]}:
			case <-done:
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			select {
			case out <- chunkResult{err: err}:
			case <-done:
			}
			return
		}
	}
}

func (s *captureSession) kill() {
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Warn("Stopping recorder failed", "error", err)
	}
	_ = s.cmd.Wait()
}

func (s *captureSession) captureDetail(readErr error) string {
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		return msg
	}
	if readErr != nil {
		return readErr.Error()
	}
	return "recorder produced no audio"
}

func (s *captureSession) transcribe(ctx context.Context) Event {
	ctx, cancel := context.WithTimeout(ctx, s.engine.transcribeTimeout)
	defer cancel()

	params := s.engine.endpoint.VAD
	tr, err := s.engine.stt.Transcribe(ctx, s.ep.Audio(), stt.TranscriptionConfig{
		Format:     stt.FormatPCM,
		SampleRate: params.SampleRate,
		Channels:   1,
		BitDepth:   stt.DefaultBitDepth,
		Language:   s.language,
	})
	if err != nil {
		logger.WarnContext(ctx, "Transcription failed", "provider", s.engine.stt.Name(), "error", err)
		return Error{Code: codeForTranscriptionError(err), Detail: err.Error()}
	}
	if strings.TrimSpace(tr.Text) == "" {
		return Error{Code: CodeNoSpeech}
	}
	return Result{Fragments: []Fragment{{Transcript: tr.Text, Final: true}}}
}

func codeForTranscriptionError(err error) Code {
	var netErr net.Error
	switch {
	case errors.Is(err, stt.ErrLanguageNotSupported):
		return CodeLanguageNotSupported
	case errors.Is(err, stt.ErrUnauthorized):
		return CodeServiceNotAllowed
	case errors.Is(err, stt.ErrAudioTooShort), errors.Is(err, stt.ErrEmptyAudio):
		return CodeNoSpeech
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr), stt.IsRetryable(err):
		return CodeNetwork
	default:
		return CodeUnknown
	}
}
