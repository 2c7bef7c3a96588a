// Package sentry reports poll-loop failures to a Sentry-compatible backend
// (Better Stack errors ingest). Every helper is a no-op until Initialize has
// been called with a token, so callers never need to check IsEnabled first.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/goose-bot/internal/ctxutil"
	apperrors "github.com/garyellow/goose-bot/internal/errors"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token. Empty disables reporting.
	Token string

	// Host is the ingesting host (e.g., "errors.betterstack.com").
	Host string

	Environment string
	Release     string

	// SampleRate controls error sampling (0.0-1.0). Zero means 1.0.
	SampleRate float64

	Debug bool

	// BotName is attached to every event as the "bot" tag.
	BotName string
}

// Initialize sets up the SDK. The DSN is https://$TOKEN@$HOST/1; the project
// ID is required by the SDK and ignored by Better Stack.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return errors.New("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       dropShutdownNoise,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	if cfg.BotName != "" {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("bot", cfg.BotName)
		})
	}
	return nil
}

// dropShutdownNoise discards cancellation errors raised while the loop stops.
func dropShutdownNoise(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint != nil && hint.OriginalException != nil && isShutdownError(hint.OriginalException) {
		return nil
	}
	return event
}

func isShutdownError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Flush waits for buffered events. Returns true if all were sent in time.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException captures an error and sends it to Sentry.
func CaptureException(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// CaptureExceptionWithContext captures err tagged with the poll-loop values
// carried by ctx and the failing module:operation, when err names one.
func CaptureExceptionWithContext(ctx context.Context, err error) {
	if err == nil || isShutdownError(err) {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(eventTags(ctx, err))
		hub.CaptureException(err)
	})
}

// Tags extracts the poll-loop tracing values present in ctx.
func Tags(ctx context.Context) map[string]string {
	tags := make(map[string]string, 3)
	if v := ctxutil.GetCycleID(ctx); v != "" {
		tags["cycle_id"] = v
	}
	if v := ctxutil.GetStream(ctx); v != "" {
		tags["stream"] = v
	}
	if v := ctxutil.GetItemID(ctx); v != "" {
		tags["item_id"] = v
	}
	return tags
}

func eventTags(ctx context.Context, err error) map[string]string {
	tags := Tags(ctx)
	if op := apperrors.Operation(err); op != "unknown" {
		tags["operation"] = op
	}
	return tags
}
