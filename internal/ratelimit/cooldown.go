package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Holder is a RateLimiter whose callers decide how long each action keeps
// the next one waiting.
type Holder interface {
	RateLimiter
	Hold(d time.Duration)
}

// Cooldown is one gate shared by every action of an account. Hold(d) blocks
// all later Waits until d has passed; a shorter Hold never shortens a
// longer one already in force.
type Cooldown struct {
	mu    sync.Mutex
	clock Clock
	until time.Time
}

var _ Holder = (*Cooldown)(nil)

// NewSharedCooldown creates an open gate. A nil clock uses wall time.
func NewSharedCooldown(clock Clock) *Cooldown {
	if clock == nil {
		clock = realClock{}
	}
	return &Cooldown{clock: clock}
}

// Wait blocks until the current hold has expired or ctx is done.
func (c *Cooldown) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		remaining := c.until.Sub(c.clock.Now())
		c.mu.Unlock()

		if remaining <= 0 {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(remaining):
		}
	}
}

// Hold closes the gate for d from now.
func (c *Cooldown) Hold(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if until := c.clock.Now().Add(d); until.After(c.until) {
		c.until = until
	}
}
