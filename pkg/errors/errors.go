// Package errors provides the structured error type shared by the speech
// components.
//
// ContextualError records which component failed and during which operation,
// with an optional status code (for HTTP-backed services) and free-form
// details. It unwraps to its cause so errors.Is / errors.As keep working on
// the package sentinels (tts.ErrEmptyText, recognition.ErrUnsupported, ...).
//
// Usage:
//
//	err := errors.New("speech", "GenerateAndPlay", cause).
//	    WithDetails(map[string]any{"message_id": id})
package errors

import (
	stderrors "errors"
	"fmt"
)

// Component names used across the module.
const (
	ComponentSynthesis     = "tts"
	ComponentTranscription = "stt"
	ComponentPlayback      = "playback"
	ComponentCoordinator   = "speech"
	ComponentRecognition   = "recognition"
	ComponentBridge        = "bridge"
	ComponentConfig        = "config"
)

// ContextualError is a structured error that tells where and why a failure
// happened.
type ContextualError struct {
	// Component identifies the package that produced the error.
	Component string

	// Operation is the public operation that was running.
	Operation string

	// StatusCode is an optional HTTP or service status code.
	StatusCode int

	// Details holds optional structured metadata (message IDs, voices...).
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Wrap is New for call sites that may hold a nil error; it returns nil when
// cause is nil so it can be used in a plain return statement.
func Wrap(component, operation string, cause error) error {
	if cause == nil {
		return nil
	}
	return New(component, operation, cause)
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns the same error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the same error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// ComponentOf returns the component of the outermost ContextualError in err's
// chain, or "" when there is none.
func ComponentOf(err error) string {
	var ce *ContextualError
	if stderrors.As(err, &ce) {
		return ce.Component
	}
	return ""
}
