package weatherapi

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

type cached struct {
	data      domain.WeatherData
	fetchedAt time.Time
}

// CachedFeed wraps a WeatherFeed with a bounded LRU whose entries expire
// after ttl.
type CachedFeed struct {
	inner   domain.WeatherFeed
	cache   *lru.Cache[domain.LocationKey, cached]
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedFeed creates a cache decorator around a feed.
func NewCachedFeed(inner domain.WeatherFeed, size int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) (*CachedFeed, error) {
	cache, err := lru.New[domain.LocationKey, cached](size)
	if err != nil {
		return nil, fmt.Errorf("create weather cache: %w", err)
	}
	return &CachedFeed{inner: inner, cache: cache, ttl: ttl, clock: clock, metrics: metrics}, nil
}

func (c *CachedFeed) LatestWeather(ctx context.Context, location string) (domain.WeatherData, error) {
	key := domain.KeyOf(location)
	now := c.clock.Now()
	if e, ok := c.cache.Get(key); ok && now.Sub(e.fetchedAt) < c.ttl {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return e.data, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	data, err := c.inner.LatestWeather(ctx, location)
	if err != nil {
		// Misses are not cached so a location can start reporting at any time.
		return domain.WeatherData{}, err
	}
	c.cache.Add(key, cached{data: data, fetchedAt: now})
	return data, nil
}

// Len is the number of cached locations.
func (c *CachedFeed) Len() int {
	return c.cache.Len()
}
