package stt

import (
	"context"
	"strings"
)

const (
	// Default audio settings.
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultBitDepth   = 16

	// Common audio formats.
	FormatPCM = "pcm"
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

// Service transcribes audio to text.
type Service interface {
	// Name returns the provider identifier (for logging/debugging).
	Name() string

	// Transcribe converts one utterance to text. An empty Transcript.Text
	// means the provider heard no speech.
	Transcribe(ctx context.Context, audio []byte, config TranscriptionConfig) (*Transcript, error)
}

// Transcript is the result of one transcription.
type Transcript struct {
	// Text is the recognised text, trimmed.
	Text string

	// Language is the language the provider detected or was told to use.
	Language string
}

// TranscriptionConfig configures speech-to-text transcription.
type TranscriptionConfig struct {
	// Format is the audio format ("pcm", "wav", "mp3").
	// Default: "pcm"
	Format string

	// SampleRate, Channels and BitDepth describe PCM input.
	SampleRate int
	Channels   int
	BitDepth   int

	// Language is a BCP 47 tag ("fr-FR") or ISO 639-1 code ("fr").
	Language string

	// Model is the STT model to use (provider-specific).
	Model string
}

// DefaultTranscriptionConfig returns sensible defaults for transcription.
func DefaultTranscriptionConfig() TranscriptionConfig {
	return TranscriptionConfig{
		Format:     FormatPCM,
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
		Language:   "en",
	}
}

func (c *TranscriptionConfig) applyDefaults() {
	if c.Format == "" {
		c.Format = FormatPCM
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.BitDepth == 0 {
		c.BitDepth = DefaultBitDepth
	}
}

// BaseLanguage reduces a BCP 47 tag to its primary language subtag:
// "fr-FR" and "fr_FR" become "fr".
func BaseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
