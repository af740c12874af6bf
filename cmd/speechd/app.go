package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/deathnote2501/fia-v3.0-sub001/pkg/config"
	"github.com/deathnote2501/fia-v3.0-sub001/pkg/httputil"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/audio"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	metrics "github.com/deathnote2501/fia-v3.0-sub001/runtime/metrics/prometheus"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/playback"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/recognition"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/speech"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/stt"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/telemetry"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/tts"
	"github.com/deathnote2501/fia-v3.0-sub001/server/bridge"
)

const eventSource = "speechd"

// app is one speechd instance wired from a configuration.
type app struct {
	cfg *config.Config

	bus      *events.EventBus
	player   *playback.Controller
	coord    *speech.Coordinator
	voice    *recognition.Handler
	bridge   *bridge.Server
	exporter *metrics.Exporter

	sdkTP *sdktrace.TracerProvider
	spans *telemetry.OTelEventListener
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, bus: events.NewEventBus()}
	em := events.NewEmitter(a.bus, eventSource)

	var tp trace.TracerProvider = otel.GetTracerProvider()
	if cfg.Telemetry.Enabled {
		telemetry.SetupPropagation()
		sdkTP, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry.Endpoint,
			cfg.Telemetry.ServiceName, cfg.Telemetry.SampleRatio)
		if err != nil {
			return nil, fmt.Errorf("tracer provider: %w", err)
		}
		otel.SetTracerProvider(sdkTP)
		a.sdkTP, tp = sdkTP, sdkTP
		a.spans = telemetry.NewOTelEventListener(telemetry.Tracer(tp))
		a.bus.SubscribeAll(a.spans.OnEvent)
	}

	synth, err := newSynthesizer(cfg.Synthesis)
	if err != nil {
		return nil, err
	}

	output, remote := newOutput(cfg.Playback)
	a.player = playback.NewController(output,
		playback.WithNotifier(em),
		playback.WithReadyTimeout(cfg.Playback.ReadyTimeout))

	a.coord = speech.New(synth, a.player, speech.NewMode(false),
		speech.WithConfig(speech.Config{
			Voice:             cfg.Synthesis.Voice,
			Language:          cfg.Synthesis.Language,
			BatchSize:         cfg.Backlog.BatchSize,
			BatchPause:        cfg.Backlog.BatchPause,
			GenerationTimeout: cfg.Synthesis.GenerationTimeout,
		}),
		speech.WithEmitter(em),
		speech.WithTracerProvider(tp))

	opts := []bridge.Option{
		bridge.WithPath(cfg.Bridge.Path),
		bridge.WithAllowedOrigins(cfg.Bridge.AllowedOrigins...),
		bridge.WithTracerProvider(tp),
	}
	if remote != nil {
		opts = append(opts, bridge.WithRemoteOutput(remote))
	}
	if cfg.Recognition.Enabled {
		a.voice = newVoiceHandler(cfg.Recognition, em)
		opts = append(opts, bridge.WithVoice(a.voice))
	}

	var onActive func(context.Context)
	if a.spans != nil {
		onActive = a.spans.SetParent
	}
	var onCount func(int)
	if cfg.Metrics.Enabled {
		a.bus.SubscribeAll(metrics.NewMetricsListener().Listener())
		a.exporter = metrics.NewExporter(cfg.Metrics.Addr)
		onCount = metrics.RecordBridgeClients
		if cfg.Metrics.Addr == "" {
			opts = append(opts, bridge.WithHandler("GET /metrics", a.exporter.Handler()))
		}
	}
	opts = append(opts, bridge.WithClientHook(onActive, onCount))

	a.bridge = bridge.NewServer(a.coord, opts...)
	a.bridge.Attach(a.bus)
	return a, nil
}

func newSynthesizer(cfg config.SynthesisConfig) (tts.Service, error) {
	client := httputil.NewHTTPClient(cfg.Timeout)

	var svc tts.Service
	switch cfg.Provider {
	case config.ProviderOpenAI:
		format, ok := tts.FormatByName(cfg.OpenAI.Format)
		if !ok {
			return nil, fmt.Errorf("unknown audio format %q", cfg.OpenAI.Format)
		}
		opts := []tts.OpenAIOption{
			tts.WithOpenAIClient(client),
			tts.WithOpenAIModel(cfg.OpenAI.Model),
			tts.WithOpenAIFormat(format),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, tts.WithOpenAIBaseURL(cfg.OpenAI.BaseURL))
		}
		if cfg.OpenAI.Speed > 0 {
			opts = append(opts, tts.WithOpenAISpeed(cfg.OpenAI.Speed))
		}
		svc = tts.NewOpenAI(cfg.APIKey, opts...)
	case config.ProviderBackend:
		svc = tts.NewBackend(cfg.Endpoint,
			tts.WithBackendClient(client),
			tts.WithBackendAPIKey(cfg.APIKey))
	default:
		return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
	}

	if cfg.RateLimit.RequestsPerSecond > 0 {
		svc = tts.NewRateLimited(svc, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	return svc, nil
}

// newOutput returns the playback output, and the remote output when pages
// play the audio.
func newOutput(cfg config.PlaybackConfig) (playback.Output, *bridge.RemoteOutput) {
	switch cfg.Output {
	case config.OutputCommand:
		return playback.NewCommandOutput(cfg.Command...), nil
	case config.OutputNone:
		return playback.NullOutput{}, nil
	default:
		remote := bridge.NewRemoteOutput()
		return remote, remote
	}
}

func newVoiceHandler(cfg config.RecognitionConfig, em *events.Emitter) *recognition.Handler {
	sttOpts := []stt.OpenAIOption{stt.WithOpenAIModel(cfg.Model)}
	if cfg.BaseURL != "" {
		sttOpts = append(sttOpts, stt.WithOpenAIBaseURL(cfg.BaseURL))
	}

	engine := recognition.NewCaptureEngine(stt.NewOpenAI(cfg.APIKey, sttOpts...),
		recognition.WithRecorderCommand(cfg.RecorderCommand...),
		recognition.WithEndpointParams(endpointParams(cfg)),
		recognition.WithTranscribeTimeout(cfg.TranscribeTimeout))
	return recognition.NewHandler(engine,
		recognition.WithLanguage(cfg.Language),
		recognition.WithEmitter(em))
}

// endpointParams keeps the detector defaults, which match the 16 kHz
// recorder, and takes the utterance limits from config. Zero limits fall
// back to the audio package defaults.
func endpointParams(cfg config.RecognitionConfig) audio.EndpointParams {
	p := audio.DefaultEndpointParams()
	p.NoSpeechTimeout = cfg.NoSpeechTimeout
	p.MaxUtterance = cfg.MaxUtterance
	return p
}

// serve runs the bridge on ln, and the metrics exporter on its own address
// when configured, until ctx ends or a server fails.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 2)
	go func() { errCh <- a.bridge.Serve(ln) }()
	if a.exporter != nil && a.cfg.Metrics.Addr != "" {
		go func() { errCh <- a.exporter.Start() }()
	}
	logger.Info("speechd listening",
		"bridge", "ws://"+ln.Addr().String()+a.cfg.Bridge.Path,
		"output", a.cfg.Playback.Output,
		"provider", a.cfg.Synthesis.Provider,
		"voice_input", a.cfg.Recognition.Enabled)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// shutdown stops serving and releases everything newApp built.
func (a *app) shutdown(ctx context.Context) error {
	errs := []error{a.bridge.Shutdown(ctx)}
	if a.exporter != nil && a.cfg.Metrics.Addr != "" {
		errs = append(errs, a.exporter.Shutdown(ctx))
	}
	if a.voice != nil {
		a.voice.Close()
	}
	a.coord.Close()
	a.player.Close()
	if a.spans != nil {
		a.spans.Close()
	}
	a.bus.Close()
	if a.sdkTP != nil {
		errs = append(errs, a.sdkTP.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
