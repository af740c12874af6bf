package recognition

import "context"

// Config configures a recognizer. Sessions are always single-shot.
type Config struct {
	// InterimResults requests non-final results as well.
	InterimResults bool
	// MaxAlternatives bounds the alternatives per fragment.
	MaxAlternatives int
}

// DefaultConfig is final-results-only with one alternative.
func DefaultConfig() Config {
	return Config{MaxAlternatives: 1}
}

// Platform is the host's speech-recognition capability.
type Platform interface {
	// Supported reports whether recognition is available at all.
	Supported() bool
	// ProbeMicrophone briefly opens the microphone and releases it. A
	// non-nil error means access was refused or impossible.
	ProbeMicrophone(ctx context.Context) error
	// NewRecognizer creates a recognizer.
	NewRecognizer(cfg Config) (Recognizer, error)
}

// Recognizer runs recognition sessions one at a time.
type Recognizer interface {
	// Start begins a session in language. Events for that session arrive on
	// the returned channel, which is closed after Ended.
	Start(ctx context.Context, language string) (<-chan Event, error)
	// Stop asks the current session to finish. The session still reports
	// its outcome and Ended.
	Stop() error
}
