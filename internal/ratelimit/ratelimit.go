// Package ratelimit provides the token bucket used to space out replies.
// A bucket with burst 1 refilled once per cooldown guarantees at most one
// reply per cooldown window no matter how many items are queued.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// ErrNoRefill is returned by Wait when the bucket is empty and never refills.
var ErrNoRefill = errors.New("ratelimit: bucket is empty and refill rate is zero")

// RateLimiter is the blocking side of a limiter, as used by the poll loop.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Clock abstracts time so tests can drive the bucket without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Limiter is a token bucket safe for concurrent use. Wait takes one token,
// blocking while the bucket is empty.
type Limiter struct {
	mu         sync.Mutex
	clock      Clock
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// New creates a limiter holding at most maxTokens, refilled at refillRate
// tokens per second. The bucket starts full.
func New(maxTokens, refillRate float64, opts ...Option) *Limiter {
	l := &Limiter{
		clock:      realClock{},
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastRefill = l.clock.Now()
	return l
}

// NewCooldown creates a burst-1 limiter that releases one token per cooldown.
// The first Wait returns immediately.
func NewCooldown(cooldown time.Duration, opts ...Option) *Limiter {
	rate := 0.0
	if cooldown > 0 {
		rate = 1 / cooldown.Seconds()
	}
	return New(1, rate, opts...)
}

// refill credits tokens for the time since lastRefill. Caller holds mu.
func (l *Limiter) refill() {
	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// Wait blocks until a token is available or the context is canceled.
// Returns nil if a token was acquired, or ctx.Err() if canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()

		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		if l.refillRate <= 0 {
			l.mu.Unlock()
			return ErrNoRefill
		}

		waitTime := max(time.Duration(math.Ceil((1-l.tokens)/l.refillRate*float64(time.Second))), time.Millisecond)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(waitTime):
		}
	}
}
