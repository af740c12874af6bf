package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, validates and decodes the configuration file at
// filename.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Parse validates and decodes a SpeechConfig manifest, applies environment
// overrides, then checks the result.
func Parse(data []byte) (*Config, error) {
	// Step 1: JSON Schema validation (structure, types, kind, enums)
	if err := ValidateSpeechConfig(data); err != nil {
		return nil, err
	}

	// Step 2: decode over the defaults so omitted fields keep them
	manifest := Manifest{Spec: *Default()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&manifest); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg := &manifest.Spec

	// Step 3: secrets from the environment
	cfg.ApplyEnv(os.LookupEnv)

	// Step 4: cross-field checks the schema cannot express
	if err := NewConfigValidator(cfg).Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills API keys from the environment. Values already set in the
// file win, except that SPEECHD_TTS_API_KEY always overrides the synthesis
// key so deployments can rotate it without editing files.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvTTSAPIKey); ok && v != "" {
		c.Synthesis.APIKey = v
	}
	openAIKey, _ := lookup(EnvOpenAIAPIKey)
	if c.Synthesis.Provider == ProviderOpenAI && c.Synthesis.APIKey == "" {
		c.Synthesis.APIKey = openAIKey
	}
	if c.Recognition.APIKey == "" {
		c.Recognition.APIKey = openAIKey
	}
}
