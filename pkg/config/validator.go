package config

import (
	"fmt"
	"net/url"
)

// ConfigValidator checks cross-field consistency after decoding.
type ConfigValidator struct {
	config *Config
	errors []error
	warns  []string
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{
		config: cfg,
		errors: make([]error, 0),
		warns:  make([]string, 0),
	}
}

// Validate runs every check and reports all errors at once.
func (v *ConfigValidator) Validate() error {
	if err := v.config.Logging.Validate(); err != nil {
		v.errors = append(v.errors, err)
	}
	v.validateSynthesis()
	v.validatePlayback()
	v.validateBacklog()
	v.validateRecognition()
	v.validateTelemetry()

	if len(v.errors) > 0 {
		return fmt.Errorf("configuration validation failed with %d errors: %v", len(v.errors), v.errors)
	}
	return nil
}

// GetWarnings returns all validation warnings
func (v *ConfigValidator) GetWarnings() []string {
	return v.warns
}

func (v *ConfigValidator) fail(field, message, value string) {
	v.errors = append(v.errors, &ValidationError{Field: field, Message: message, Value: value})
}

func (v *ConfigValidator) validateSynthesis() {
	s := v.config.Synthesis
	switch s.Provider {
	case ProviderBackend:
		if s.Endpoint == "" {
			v.fail("synthesis.endpoint", "required for the backend provider", "")
		} else if u, err := url.Parse(s.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			v.fail("synthesis.endpoint", "must be an absolute URL", s.Endpoint)
		}
	case ProviderOpenAI:
		if s.APIKey == "" {
			v.fail("synthesis.apiKey", "required for the openai provider (or set "+EnvOpenAIAPIKey+")", "")
		}
	default:
		v.fail("synthesis.provider", "must be one of: backend, openai", s.Provider)
	}
	if s.Timeout <= 0 {
		v.fail("synthesis.timeout", "must be positive", s.Timeout.String())
	}
	if s.GenerationTimeout < s.Timeout {
		v.warns = append(v.warns, "synthesis.generationTimeout is shorter than synthesis.timeout")
	}
	if s.RateLimit.RequestsPerSecond > 0 && s.RateLimit.Burst < 1 {
		v.fail("synthesis.rateLimit.burst", "must be at least 1 when requestsPerSecond is set", "")
	}
}

func (v *ConfigValidator) validatePlayback() {
	p := v.config.Playback
	switch p.Output {
	case OutputCommand:
		if len(p.Command) == 0 {
			v.fail("playback.command", "required for the command output", "")
		}
	case OutputPage, OutputNone:
	default:
		v.fail("playback.output", "must be one of: page, command, none", p.Output)
	}
	if p.ReadyTimeout <= 0 {
		v.fail("playback.readyTimeout", "must be positive", p.ReadyTimeout.String())
	}
}

func (v *ConfigValidator) validateBacklog() {
	if v.config.Backlog.BatchSize < 1 {
		v.fail("backlog.batchSize", "must be at least 1", fmt.Sprint(v.config.Backlog.BatchSize))
	}
	if v.config.Backlog.BatchPause < 0 {
		v.fail("backlog.batchPause", "must not be negative", v.config.Backlog.BatchPause.String())
	}
}

func (v *ConfigValidator) validateRecognition() {
	r := v.config.Recognition
	if !r.Enabled {
		return
	}
	if r.APIKey == "" {
		v.fail("recognition.apiKey", "required when recognition is enabled (or set "+EnvOpenAIAPIKey+")", "")
	}
	if r.MaxUtterance > 0 && r.NoSpeechTimeout > r.MaxUtterance {
		v.warns = append(v.warns, "recognition.noSpeechTimeout exceeds recognition.maxUtterance")
	}
}

func (v *ConfigValidator) validateTelemetry() {
	t := v.config.Telemetry
	if t.Enabled && t.Endpoint == "" {
		v.fail("telemetry.endpoint", "required when telemetry is enabled", "")
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		v.fail("telemetry.sampleRatio", "must be between 0 and 1", fmt.Sprint(t.SampleRatio))
	}
}
