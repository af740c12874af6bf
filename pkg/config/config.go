// Package config loads the speechd configuration.
//
// A configuration file is a Kubernetes-style manifest:
//
//	apiVersion: speechd.fia.dev/v1alpha1
//	kind: SpeechConfig
//	metadata:
//	  name: local
//	spec:
//	  synthesis:
//	    provider: backend
//	    endpoint: http://localhost:8000/api/tts
//
// Loading runs in four steps: JSON schema validation of the raw document,
// decoding over the defaults, environment overrides for secrets, then
// semantic validation.
package config

import "time"

// Synthesis providers.
const (
	ProviderBackend = "backend"
	ProviderOpenAI  = "openai"
)

// Playback outputs.
const (
	// OutputPage plays audio in the connected page over the bridge.
	OutputPage = "page"
	// OutputCommand pipes audio into a local player process.
	OutputCommand = "command"
	// OutputNone discards audio; playback status still flows.
	OutputNone = "none"
)

// Environment variables consulted after the file is decoded.
const (
	EnvTTSAPIKey    = "SPEECHD_TTS_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// ObjectMeta is the manifest metadata.
type ObjectMeta struct {
	Name   string            `yaml:"name,omitempty"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// Manifest is the on-disk form of a configuration.
type Manifest struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Config     `yaml:"spec"`
}

// Config is the complete speechd configuration.
type Config struct {
	Logging     LoggingConfigSpec `yaml:"logging,omitempty"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	Playback    PlaybackConfig    `yaml:"playback,omitempty"`
	Backlog     BacklogConfig     `yaml:"backlog,omitempty"`
	Recognition RecognitionConfig `yaml:"recognition,omitempty"`
	Bridge      BridgeConfig      `yaml:"bridge,omitempty"`
	Metrics     MetricsConfig     `yaml:"metrics,omitempty"`
	Telemetry   TelemetryConfig   `yaml:"telemetry,omitempty"`
}

// SynthesisConfig selects and tunes the speech synthesis client.
type SynthesisConfig struct {
	Provider string `yaml:"provider"`
	// Endpoint is the platform's synthesis URL (backend provider).
	Endpoint string        `yaml:"endpoint,omitempty"`
	APIKey   string        `yaml:"apiKey,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`

	Voice    string `yaml:"voice,omitempty"`
	Language string `yaml:"language,omitempty"`

	// GenerationTimeout bounds one generation including queueing.
	GenerationTimeout time.Duration `yaml:"generationTimeout,omitempty"`

	RateLimit RateLimitConfig `yaml:"rateLimit,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
}

// RateLimitConfig throttles synthesis calls. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
}

// OpenAIConfig tunes the OpenAI speech provider.
type OpenAIConfig struct {
	BaseURL string  `yaml:"baseURL,omitempty"`
	Model   string  `yaml:"model,omitempty"`
	Format  string  `yaml:"format,omitempty"`
	Speed   float64 `yaml:"speed,omitempty"`
}

// PlaybackConfig selects where audio is played.
type PlaybackConfig struct {
	Output string `yaml:"output,omitempty"`
	// Command is the player argv for OutputCommand; audio arrives on stdin.
	Command      []string      `yaml:"command,omitempty"`
	ReadyTimeout time.Duration `yaml:"readyTimeout,omitempty"`
}

// BacklogConfig tunes the sweep run when TTS mode is enabled.
type BacklogConfig struct {
	BatchSize  int           `yaml:"batchSize,omitempty"`
	BatchPause time.Duration `yaml:"batchPause,omitempty"`
}

// RecognitionConfig configures voice input.
type RecognitionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"`
	BaseURL  string `yaml:"baseURL,omitempty"`
	Model    string `yaml:"model,omitempty"`

	RecorderCommand   []string      `yaml:"recorderCommand,omitempty"`
	NoSpeechTimeout   time.Duration `yaml:"noSpeechTimeout,omitempty"`
	MaxUtterance      time.Duration `yaml:"maxUtterance,omitempty"`
	TranscribeTimeout time.Duration `yaml:"transcribeTimeout,omitempty"`
}

// BridgeConfig configures the page WebSocket bridge.
type BridgeConfig struct {
	Addr string `yaml:"addr,omitempty"`
	Path string `yaml:"path,omitempty"`
	// AllowedOrigins lists page origins allowed to connect. Empty allows
	// same-origin requests only.
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr serves /metrics on its own listener. Empty mounts /metrics on
	// the bridge server.
	Addr string `yaml:"addr,omitempty"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint,omitempty"`
	ServiceName string  `yaml:"serviceName,omitempty"`
	SampleRatio float64 `yaml:"sampleRatio,omitempty"`
}

// Default returns the configuration used for every unset field.
func Default() *Config {
	return &Config{
		Logging: DefaultLoggingConfig(),
		Synthesis: SynthesisConfig{
			Provider:          ProviderBackend,
			Timeout:           30 * time.Second,
			Voice:             "nova",
			Language:          "fr-FR",
			GenerationTimeout: 45 * time.Second,
			OpenAI: OpenAIConfig{
				Model:  "tts-1",
				Format: "mp3",
			},
		},
		Playback: PlaybackConfig{
			Output:       OutputPage,
			ReadyTimeout: 2 * time.Second,
		},
		Backlog: BacklogConfig{
			BatchSize:  3,
			BatchPause: 500 * time.Millisecond,
		},
		Recognition: RecognitionConfig{
			Language:          "fr-FR",
			Model:             "whisper-1",
			NoSpeechTimeout:   5 * time.Second,
			MaxUtterance:      15 * time.Second,
			TranscribeTimeout: 30 * time.Second,
		},
		Bridge: BridgeConfig{
			Addr: "127.0.0.1:8765",
			Path: "/bridge",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "speechd",
			SampleRatio: 1,
		},
	}
}
