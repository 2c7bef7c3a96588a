package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
	"github.com/garyellow/goose-bot/internal/logger"
	"github.com/garyellow/goose-bot/internal/metrics"
)

// Chain tries providers in order and returns the first record found.
// It reports ErrNotFound only when every provider said not found; if any
// provider failed for another reason, that failure is returned instead.
type Chain struct {
	providers []Provider
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewChain creates a chain. metrics and log may be nil.
func NewChain(providers []Provider, m *metrics.Metrics, log *logger.Logger) *Chain {
	if log == nil {
		log = logger.Discard()
	}
	return &Chain{
		providers: providers,
		metrics:   m,
		logger:    log.WithModule("directory"),
	}
}

// Lookup implements Lookup.
func (c *Chain) Lookup(ctx context.Context, program, number string) (*CourseRecord, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("directory: no providers configured: %w", apperrors.ErrNotFound)
	}

	var failures []error
	for _, p := range c.providers {
		start := time.Now()
		record, err := p.Lookup(ctx, program, number)
		elapsed := time.Since(start)

		switch {
		case err == nil && record != nil:
			c.record(p.Name(), "found", elapsed)
			return record, nil
		case err == nil, apperrors.IsNotFound(err):
			c.record(p.Name(), "not_found", elapsed)
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.record(p.Name(), "error", elapsed)
			c.logger.WithError(err).WarnContext(ctx, "Directory provider failed",
				"provider", p.Name(),
				"course", program+number)
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return nil, fmt.Errorf("directory %s%s: %w", program, number, apperrors.ErrNotFound)
}

func (c *Chain) record(provider, status string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordLookup(provider, status, elapsed.Seconds())
	}
}
