package recognition

import (
	"errors"
)

var (
	// ErrUnsupported is returned by Start when the platform has no
	// recognition capability. It is terminal for the handler.
	ErrUnsupported = errors.New("speech recognition not supported")

	// ErrPermissionDenied is returned when microphone access is refused.
	// The caller may retry RequestPermission.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Code is a recognition error code as reported by the platform.
type Code string

// Recognition error codes.
const (
	CodeNotAllowed           Code = "not-allowed"
	CodeNoSpeech             Code = "no-speech"
	CodeAudioCapture         Code = "audio-capture"
	CodeNetwork              Code = "network"
	CodeServiceNotAllowed    Code = "service-not-allowed"
	CodeBadGrammar           Code = "bad-grammar"
	CodeLanguageNotSupported Code = "language-not-supported"
	CodeAborted              Code = "aborted"
	CodeUnknown              Code = "unknown"
)

var codeMessages = map[Code]string{
	CodeNotAllowed:           "Microphone access was denied. Allow it in your browser settings and try again.",
	CodeNoSpeech:             "No speech was detected. Please try again.",
	CodeAudioCapture:         "No microphone was found or it could not be used.",
	CodeNetwork:              "A network error interrupted speech recognition.",
	CodeServiceNotAllowed:    "The speech recognition service is not allowed.",
	CodeBadGrammar:           "The speech recognition grammar is invalid.",
	CodeLanguageNotSupported: "The selected language is not supported for voice input.",
	CodeAborted:              "Speech recognition was cancelled.",
}

// Message returns the human-readable message for code. Unrecognized codes
// get a generic message.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "Speech recognition failed (" + string(c) + ")."
}

// Known reports whether c is one of the defined codes.
func (c Code) Known() bool {
	_, ok := codeMessages[c]
	return ok
}

// ParseCode maps a platform error string onto a Code. Unknown strings map
// to CodeUnknown.
func ParseCode(s string) Code {
	c := Code(s)
	if c.Known() {
		return c
	}
	return CodeUnknown
}
