package directory

import (
	"context"
	"fmt"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
	"github.com/garyellow/goose-bot/internal/logger"
	"github.com/garyellow/goose-bot/internal/metrics"
	"github.com/garyellow/goose-bot/internal/scraper"
	"github.com/garyellow/goose-bot/internal/storage"
)

const cacheModule = "directory"

// Cached fronts a Lookup with the SQLite course cache. Concurrent misses for
// the same course share one upstream call. Only found records are cached.
type Cached struct {
	inner   Lookup
	db      *storage.DB
	flight  *scraper.CacheWrapper
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewCached wraps inner. metrics and log may be nil.
func NewCached(inner Lookup, db *storage.DB, m *metrics.Metrics, log *logger.Logger) *Cached {
	if log == nil {
		log = logger.Discard()
	}
	return &Cached{
		inner:   inner,
		db:      db,
		flight:  scraper.NewCacheWrapper(),
		metrics: m,
		logger:  log.WithModule("directory_cache"),
	}
}

// Lookup implements Lookup.
func (c *Cached) Lookup(ctx context.Context, program, number string) (*CourseRecord, error) {
	key := cacheKey(program, number)

	cached, err := c.db.GetCourse(ctx, program, number)
	if err == nil {
		c.hit()
		return &CourseRecord{
			Program: cached.Program,
			Number:  cached.Number,
			Title:   cached.Title,
			URL:     cached.URL,
			Source:  cached.Source,
		}, nil
	}
	if !apperrors.IsNotFound(err) {
		c.logger.WithError(err).WarnContext(ctx, "Cache read failed", "course", key)
	}
	c.miss()

	result, shared, err := c.flight.Do(ctx, key, func() (any, error) {
		record, err := c.inner.Lookup(ctx, program, number)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("directory %s: %w", key, apperrors.ErrNotFound)
		}
		if err := c.db.SaveCourse(ctx, &storage.Course{
			Program: record.Program,
			Number:  record.Number,
			Title:   record.Title,
			URL:     record.URL,
			Source:  record.Source,
		}); err != nil {
			c.logger.WithError(err).WarnContext(ctx, "Cache write failed", "course", key)
		}
		return record, nil
	})
	if shared && c.metrics != nil {
		c.metrics.RecordSingleflightDedup(cacheModule)
	}
	if err != nil {
		return nil, err
	}

	record := *result.(*CourseRecord)
	return &record, nil
}

// Cleanup deletes expired cache entries.
func (c *Cached) Cleanup(ctx context.Context) (int64, error) {
	return c.db.DeleteExpiredCourses(ctx)
}

func (c *Cached) hit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(cacheModule)
	}
}

func (c *Cached) miss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(cacheModule)
	}
}
