// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	cycleIDKey   contextKey = "ctxutil.cycleID"
	streamKey    contextKey = "ctxutil.stream"
	itemIDKey    contextKey = "ctxutil.itemID"
	requestIDKey contextKey = "ctxutil.requestID"
)

// WithCycleID adds a poll-cycle ID to the context.
// One cycle is a single pass over the submission stream and the inbox stream.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey, cycleID)
}

// GetCycleID retrieves the poll-cycle ID from the context.
// Returns empty string if not set.
func GetCycleID(ctx context.Context) string {
	return getString(ctx, cycleIDKey)
}

// WithStream adds the name of the stream being drained ("submissions" or "inbox").
func WithStream(ctx context.Context, stream string) context.Context {
	return context.WithValue(ctx, streamKey, stream)
}

// GetStream retrieves the stream name from the context.
func GetStream(ctx context.Context) string {
	return getString(ctx, streamKey)
}

// WithItemID adds the forum item (submission or comment) ID currently being handled.
func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, itemIDKey, itemID)
}

// GetItemID retrieves the forum item ID from the context.
func GetItemID(ctx context.Context) string {
	return getString(ctx, itemIDKey)
}

// WithRequestID adds an HTTP request ID to the context for tracing.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok && requestID != ""
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
