package scraper

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
)

// maxBackoff caps a single retry delay.
const maxBackoff = 30 * time.Second

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryWithBackoff returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// isPermanent reports whether err should stop the retry loop.
func isPermanent(err error) bool {
	var permErr *permanentError
	if errors.As(err, &permErr) {
		return true
	}
	var httpErr *apperrors.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Permanent()
	}
	return errors.Is(err, context.Canceled)
}

// RetryWithBackoff retries a function with exponential backoff and jitter.
// Permanent errors (explicitly wrapped, or HTTP 400/401/403/404) stop the
// loop immediately.
//
// maxRetries: maximum number of retry attempts (0 = no retry, just try once)
// initialDelay: delay before the first retry
//
// Backoff formula: delay = initialDelay * 2^attempt ± 25% jitter, capped at 30s.
func RetryWithBackoff(ctx context.Context, maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if isPermanent(err) {
			var permErr *permanentError
			if errors.As(err, &permErr) {
				return permErr.Unwrap()
			}
			return err
		}

		if attempt == maxRetries {
			break
		}

		if err := Sleep(ctx, backoffDelay(initialDelay, attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

func backoffDelay(initialDelay time.Duration, attempt int) time.Duration {
	delay := min(time.Duration(float64(initialDelay)*math.Pow(2, float64(attempt))), maxBackoff)

	halfDelay := int64(delay) / 2
	if halfDelay <= 0 {
		return delay
	}
	jitterBig, err := rand.Int(rand.Reader, big.NewInt(halfDelay))
	if err != nil {
		jitterBig = big.NewInt(0)
	}
	return delay - delay/4 + time.Duration(jitterBig.Int64())
}

// Sleep waits for the specified duration, respecting context cancellation
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
