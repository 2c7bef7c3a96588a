package scraper

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// CacheWrapper deduplicates concurrent fetches of the same key so a burst of
// identical lookups hits the remote service once.
type CacheWrapper struct {
	group singleflight.Group
}

func NewCacheWrapper() *CacheWrapper {
	return &CacheWrapper{}
}

// Do executes fn once per in-flight key. shared reports whether the result
// was produced by another caller's execution.
func (c *CacheWrapper) Do(ctx context.Context, key string, fn func() (any, error)) (result any, shared bool, err error) {
	ch := c.group.DoChan(key, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
