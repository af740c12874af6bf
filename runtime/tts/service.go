package tts

import (
	"context"
	"strings"
	"time"
)

// Service converts text to a complete audio clip.
type Service interface {
	// Name returns the provider identifier (for logging/metrics).
	Name() string

	// Synthesize converts req.Text to audio. Implementations return
	// ErrEmptyText for blank text and a *SynthesisError for provider failures.
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}

// Request is one synthesis call.
type Request struct {
	// Text is the speakable text. Markup must already be stripped.
	Text string

	// Voice is the provider-specific voice ID. Empty selects the provider default.
	Voice string

	// Language is a BCP 47 tag such as "fr-FR". Empty selects the provider default.
	Language string
}

// Audio is an encoded audio clip returned by a Service.
type Audio struct {
	// Data is the encoded audio (MP3, Opus, WAV...).
	Data []byte

	// MIMEType is the content type of Data, e.g. "audio/mpeg".
	MIMEType string

	// Duration is the clip length when the provider reports it, zero otherwise.
	Duration time.Duration
}

// Size returns the encoded size in bytes.
func (a *Audio) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// AudioFormat describes an audio output format.
type AudioFormat struct {
	// Name is the format identifier ("mp3", "opus", "aac", "flac", "wav").
	Name string

	// MIMEType is the content type (e.g., "audio/mpeg").
	MIMEType string
}

// String returns the format name.
func (f AudioFormat) String() string {
	return f.Name
}

// Common audio formats.
var (
	FormatMP3  = AudioFormat{Name: "mp3", MIMEType: "audio/mpeg"}
	FormatOpus = AudioFormat{Name: "opus", MIMEType: "audio/opus"}
	FormatAAC  = AudioFormat{Name: "aac", MIMEType: "audio/aac"}
	FormatFLAC = AudioFormat{Name: "flac", MIMEType: "audio/flac"}
	FormatWAV  = AudioFormat{Name: "wav", MIMEType: "audio/wav"}
)

var knownFormats = []AudioFormat{FormatMP3, FormatOpus, FormatAAC, FormatFLAC, FormatWAV}

// FormatByName looks a format up by name, case-insensitively.
func FormatByName(name string) (AudioFormat, bool) {
	for _, f := range knownFormats {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return AudioFormat{}, false
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
