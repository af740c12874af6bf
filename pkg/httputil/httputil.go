// Package httputil provides shared HTTP client construction for the speech
// service clients. Every client it builds is traced with otelhttp so
// synthesis and transcription calls join the caller's trace.
package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Standard timeout defaults used across the project.
const (
	// DefaultSynthesisTimeout bounds one text-to-speech request.
	DefaultSynthesisTimeout = 30 * time.Second

	// DefaultTranscriptionTimeout bounds one transcription upload. Audio
	// uploads are larger than synthesis requests.
	DefaultTranscriptionTimeout = 60 * time.Second
)

// NewHTTPClient returns a traced *http.Client with the given timeout.
// Pass one of the Default*Timeout constants, or a custom duration.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
