package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys picked up by FieldHandler and added to every record.
const (
	// ContextKeyMessageID identifies the chat message being voiced.
	ContextKeyMessageID contextKey = "message_id"

	// ContextKeyRecognitionID identifies one voice-input session.
	ContextKeyRecognitionID contextKey = "recognition_id"

	// ContextKeyProvider identifies the synthesis/transcription provider.
	ContextKeyProvider contextKey = "provider"

	// ContextKeyClientID identifies the connected page (bridge client).
	ContextKeyClientID contextKey = "client_id"

	// ContextKeySweepID identifies one backlog sweep.
	ContextKeySweepID contextKey = "sweep_id"
)

var allContextKeys = []contextKey{
	ContextKeyMessageID,
	ContextKeyRecognitionID,
	ContextKeyProvider,
	ContextKeyClientID,
	ContextKeySweepID,
}

// WithMessageID returns a new context with the message ID set.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, ContextKeyMessageID, messageID)
}

// WithRecognitionID returns a new context with the recognition session ID set.
func WithRecognitionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRecognitionID, id)
}

// WithProvider returns a new context with the provider name set.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ContextKeyProvider, provider)
}

// WithClientID returns a new context with the bridge client ID set.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ContextKeyClientID, clientID)
}

// WithSweepID returns a new context with the backlog sweep ID set.
func WithSweepID(ctx context.Context, sweepID string) context.Context {
	return context.WithValue(ctx, ContextKeySweepID, sweepID)
}
