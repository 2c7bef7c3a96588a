package ctxutil

import (
	"context"
	"testing"
)

func TestTracingValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctx = WithCycleID(ctx, "cycle-1")
	ctx = WithStream(ctx, "inbox")
	ctx = WithItemID(ctx, "abc123")

	if got := GetCycleID(ctx); got != "cycle-1" {
		t.Errorf("GetCycleID() = %q, want %q", got, "cycle-1")
	}
	if got := GetStream(ctx); got != "inbox" {
		t.Errorf("GetStream() = %q, want %q", got, "inbox")
	}
	if got := GetItemID(ctx); got != "abc123" {
		t.Errorf("GetItemID() = %q, want %q", got, "abc123")
	}
}

func TestGetters_EmptyContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := GetCycleID(ctx); got != "" {
		t.Errorf("GetCycleID() = %q, want empty", got)
	}
	if got := GetItemID(ctx); got != "" {
		t.Errorf("GetItemID() = %q, want empty", got)
	}
	if _, ok := GetRequestID(ctx); ok {
		t.Error("GetRequestID() ok = true on empty context")
	}
}

func TestGetRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  string
		wantOK bool
	}{
		{"set", "req-42", true},
		{"empty string", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := GetRequestID(WithRequestID(context.Background(), tt.value))
			if ok != tt.wantOK {
				t.Errorf("GetRequestID() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.value {
				t.Errorf("GetRequestID() = %q, want %q", got, tt.value)
			}
		})
	}
}
