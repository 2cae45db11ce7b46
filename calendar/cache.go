package calendar

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// CACHED PROVIDER - per-year cache in front of a slow Provider
// =============================================================================

// CachedProvider memoizes Holidays by year. Concurrent misses for the same
// year share one upstream call. Errors are never cached.
type CachedProvider struct {
	next  Provider
	cache *cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedProvider{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Holidays returns a copy of the cached year, fetching it on a miss.
// A caller giving up early does not cancel the shared fetch.
func (c *CachedProvider) Holidays(ctx context.Context, year int) ([]Holiday, error) {
	key := cacheKey(year)
	if v, ok := c.cache.Get(key); ok {
		return cloneHolidays(v.([]Holiday)), nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		hs, err := c.next.Holidays(context.WithoutCancel(ctx), year)
		if err != nil {
			return nil, err
		}
		hs = cloneHolidays(hs)
		c.cache.Set(key, hs, c.ttl)
		return hs, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneHolidays(res.Val.([]Holiday)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Refresh fetches year from upstream and replaces the cached entry.
func (c *CachedProvider) Refresh(ctx context.Context, year int) error {
	hs, err := c.next.Holidays(ctx, year)
	if err != nil {
		return err
	}
	c.cache.Set(cacheKey(year), cloneHolidays(hs), c.ttl)
	return nil
}

// Invalidate drops a cached year.
func (c *CachedProvider) Invalidate(year int) {
	c.cache.Delete(cacheKey(year))
}

func cacheKey(year int) string {
	return "holidays:" + strconv.Itoa(year)
}

func cloneHolidays(hs []Holiday) []Holiday {
	return append([]Holiday(nil), hs...)
}
