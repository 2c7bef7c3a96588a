package logger

import (
	"context"
	"log/slog"

	"github.com/garyellow/goose-bot/internal/ctxutil"
)

// ContextHandler is a slog.Handler wrapper that copies poll-loop tracing
// values (cycle_id, stream, item_id, request_id) from the context onto every
// record, so call sites only need the *Context logging variants.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler creates a new ContextHandler that wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds the tracing attributes present in ctx and delegates.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if cycleID := ctxutil.GetCycleID(ctx); cycleID != "" {
		r.AddAttrs(slog.String("cycle_id", cycleID))
	}
	if stream := ctxutil.GetStream(ctx); stream != "" {
		r.AddAttrs(slog.String("stream", stream))
	}
	if itemID := ctxutil.GetItemID(ctx); itemID != "" {
		r.AddAttrs(slog.String("item_id", itemID))
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler wrapping handler.WithAttrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler wrapping handler.WithGroup.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
