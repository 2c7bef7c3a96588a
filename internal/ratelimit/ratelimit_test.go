package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stepClock advances its own time whenever someone waits on it, so Wait
// never blocks and the total simulated sleep can be inspected.
type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	waited time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waited += d
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *stepClock) Waited() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waited
}

func TestNew(t *testing.T) {
	t.Parallel()
	l := New(10, 5)
	if l.maxTokens != 10 {
		t.Errorf("maxTokens = %v, want 10", l.maxTokens)
	}
	if l.refillRate != 5 {
		t.Errorf("refillRate = %v, want 5", l.refillRate)
	}
	if l.tokens != 10 {
		t.Errorf("initial tokens = %v, want 10", l.tokens)
	}
}

func TestNewCooldown(t *testing.T) {
	t.Parallel()
	l := NewCooldown(2 * time.Second)
	if l.maxTokens != 1 {
		t.Errorf("maxTokens = %v, want 1", l.maxTokens)
	}
	if l.refillRate != 0.5 {
		t.Errorf("refillRate = %v, want 0.5", l.refillRate)
	}
}

func TestWait_CooldownAfterIdle(t *testing.T) {
	t.Parallel()
	clock := newStepClock()
	l := NewCooldown(time.Minute, WithClock(clock))
	ctx := context.Background()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	clock.Advance(59 * time.Second)
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := clock.Waited(); got < 990*time.Millisecond || got > 2*time.Second {
		t.Errorf("waited %v, want the remaining second of cooldown", got)
	}
}

func TestWait_Cooldown(t *testing.T) {
	t.Parallel()
	clock := newStepClock()
	l := NewCooldown(9*time.Minute, WithClock(clock))
	ctx := context.Background()

	// First wait is free, each following one costs a full cooldown.
	for range 3 {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if got, want := clock.Waited(), 18*time.Minute; got < want || got > want+time.Second {
		t.Errorf("waited %v, want %v", got, want)
	}
}

func TestWait_IdleTimeCountsTowardCooldown(t *testing.T) {
	t.Parallel()
	clock := newStepClock()
	l := NewCooldown(3*time.Minute, WithClock(clock))
	ctx := context.Background()

	_ = l.Wait(ctx)
	clock.Advance(5 * time.Minute)
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if clock.Waited() != 0 {
		t.Errorf("waited %v, want 0 after the cooldown already elapsed", clock.Waited())
	}
	// Burst is capped at one token.
	_ = l.Wait(ctx)
	if clock.Waited() == 0 {
		t.Error("third Wait() did not block; bucket exceeded burst of one")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	t.Parallel()
	l := NewCooldown(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestWait_NoRefill(t *testing.T) {
	t.Parallel()
	l := New(0, 0)
	if err := l.Wait(context.Background()); !errors.Is(err, ErrNoRefill) {
		t.Errorf("Wait() error = %v, want ErrNoRefill", err)
	}
}

func TestConcurrentWait(t *testing.T) {
	t.Parallel()
	l := New(100, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, refused := 0, 0

	for range 50 {
		wg.Go(func() {
			for range 3 {
				err := l.Wait(context.Background())
				mu.Lock()
				if err == nil {
					granted++
				} else if errors.Is(err, ErrNoRefill) {
					refused++
				}
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if granted != 100 || refused != 50 {
		t.Errorf("granted %d refused %d, want 100 and 50", granted, refused)
	}
}
