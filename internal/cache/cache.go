// Package cache provides a TTL-bounded memoization cache for expensive
// allocation queries. It is owned by the service process and injected into
// the query layer rather than referenced as ambient state.
package cache

import (
	"sync"
	"time"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/metrics"
)

// DefaultTTL matches the expiry used for backend query memoization.
const DefaultTTL = 3600 * time.Second

type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache memoizes computed values under string keys for a fixed wall-clock
// lifetime. It is safe for concurrent use.
type TTLCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// Option configures a TTLCache.
type Option func(*TTLCache)

// WithClock overrides the cache's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		c.now = now
	}
}

// New creates a TTLCache with the given entry lifetime. A non-positive ttl
// falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTLCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTLCache) get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *TTLCache) set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// GetOrCompute returns the cached value for key, or invokes compute and
// stores its result. Errors are returned to the caller and never cached, so
// the next lookup retries the computation. Concurrent misses on the same key
// may compute more than once; the last write wins.
func GetOrCompute[T any](c *TTLCache, key string, compute func() (T, error)) (T, error) {
	if v, ok := c.get(key); ok {
		metrics.CacheHits.Inc()
		return v.(T), nil
	}
	metrics.CacheMisses.Inc()

	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.set(key, v)
	return v, nil
}
