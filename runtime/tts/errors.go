package tts

import (
	"errors"
	"fmt"
	"net/http"
)

// Common TTS errors.
var (
	// ErrInvalidVoice is returned when the requested voice is not available.
	ErrInvalidVoice = errors.New("invalid or unsupported voice")

	// ErrEmptyText is returned when attempting to synthesize empty text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrSynthesisFailed is returned when TTS synthesis fails.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrInvalidResponse is returned when the provider answers 2xx with an
	// unusable body.
	ErrInvalidResponse = errors.New("invalid synthesis response")

	// ErrRateLimited is returned when API rate limits are exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized is returned when the provider rejects the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServiceUnavailable is returned when the TTS service is unavailable.
	ErrServiceUnavailable = errors.New("TTS service unavailable")
)

const serverErrorThreshold = 500

// SynthesisError provides detailed error information from TTS providers.
type SynthesisError struct {
	// Provider is the TTS provider that returned the error.
	Provider string

	// Code is the provider-specific error code, or the HTTP status.
	Code string

	// Message is the error message.
	Message string

	// Cause is the underlying error (if any).
	Cause error

	// Retryable indicates if the error is transient and retry may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// Is makes every SynthesisError match ErrSynthesisFailed.
func (e *SynthesisError) Is(target error) bool {
	return target == ErrSynthesisFailed
}

// NewSynthesisError creates a new SynthesisError.
func NewSynthesisError(provider, code, message string, cause error, retryable bool) *SynthesisError {
	return &SynthesisError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}

// IsRetryable reports whether err is a SynthesisError marked retryable.
func IsRetryable(err error) bool {
	var synthErr *SynthesisError
	return errors.As(err, &synthErr) && synthErr.Retryable
}

// statusError maps a non-2xx HTTP status to a SynthesisError.
func statusError(provider string, status int, code, message string) *SynthesisError {
	if code == "" {
		code = fmt.Sprintf("%d", status)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = "unknown error"
	}

	var cause error
	switch {
	case status == http.StatusTooManyRequests:
		cause = ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		cause = ErrUnauthorized
	case status == http.StatusServiceUnavailable:
		cause = ErrServiceUnavailable
	}

	retryable := status == http.StatusTooManyRequests || status >= serverErrorThreshold
	return NewSynthesisError(provider, code, message, cause, retryable)
}
