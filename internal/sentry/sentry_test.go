package sentry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/goose-bot/internal/ctxutil"
	apperrors "github.com/garyellow/goose-bot/internal/errors"
)

func TestInitialize_EmptyToken(t *testing.T) {
	t.Parallel()

	if err := Initialize(Config{Token: ""}); err != nil {
		t.Errorf("Expected nil error for empty token, got %v", err)
	}
}

func TestInitialize_MissingHost(t *testing.T) {
	t.Parallel()

	if err := Initialize(Config{Token: "test-token", Host: ""}); err == nil {
		t.Error("Expected error when host is missing")
	}
}

func TestInitialize_ValidConfig(t *testing.T) {
	// Sentry uses global state; no t.Parallel().
	err := Initialize(Config{
		Token:       "test-token",
		Host:        "errors.betterstack.com",
		Environment: "test",
		SampleRate:  2, // out of range, clamped to 1.0
		BotName:     "uwgoose",
	})
	if err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	if !IsEnabled() {
		t.Error("Expected IsEnabled() to return true after initialization")
	}
	Flush(time.Second)
}

func TestDropShutdownNoise(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{}
	tests := []struct {
		name string
		err  error
		drop bool
	}{
		{"canceled", context.Canceled, true},
		{"wrapped deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), true},
		{"real failure", errors.New("reply rejected"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := dropShutdownNoise(event, &sentry.EventHint{OriginalException: tt.err})
			if (got == nil) != tt.drop {
				t.Errorf("dropShutdownNoise(%v) dropped = %v, want %v", tt.err, got == nil, tt.drop)
			}
		})
	}

	if dropShutdownNoise(event, nil) != event {
		t.Error("nil hint should pass the event through")
	}
}

func TestTags(t *testing.T) {
	t.Parallel()

	if got := Tags(context.Background()); len(got) != 0 {
		t.Errorf("Tags(empty) = %v, want none", got)
	}

	ctx := ctxutil.WithCycleID(context.Background(), "c1")
	ctx = ctxutil.WithStream(ctx, "inbox")
	ctx = ctxutil.WithItemID(ctx, "t1_abc")
	got := Tags(ctx)
	if got["cycle_id"] != "c1" || got["stream"] != "inbox" || got["item_id"] != "t1_abc" {
		t.Errorf("Tags() = %v", got)
	}
}

func TestCaptureHelpers_NilSafe(t *testing.T) {
	t.Parallel()

	CaptureException(nil)
	CaptureExceptionWithContext(context.Background(), nil)
	CaptureExceptionWithContext(context.Background(), context.Canceled)
}

func TestFlush(t *testing.T) {
	t.Parallel()

	if !Flush(100 * time.Millisecond) {
		t.Error("Expected Flush to return true when no events pending")
	}
}

func TestEventTags_Operation(t *testing.T) {
	t.Parallel()
	ctx := ctxutil.WithStream(context.Background(), "inbox")

	err := apperrors.NewWrapper("forum", "mark_read").Wrap(errors.New("502"), "t1_c1")
	tags := eventTags(ctx, err)
	if tags["operation"] != "forum:mark_read" || tags["stream"] != "inbox" {
		t.Errorf("eventTags() = %v", tags)
	}

	if _, ok := eventTags(ctx, errors.New("plain"))["operation"]; ok {
		t.Error("plain errors should not carry an operation tag")
	}
}
