// Package cache provides a process-local TTL cache for upstream API
// responses. Entries expire lazily at read time; an optional sweeper can
// reclaim dead entries in long-lived processes. There is no size bound and
// no eviction beyond expiry.
package cache

import (
	"context"
	"sync"
	"time"
)

// Metrics receives cache lifecycle events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	Hit()
	Miss()
	Expired()
}

// NopMetrics ignores all events. It is the default when no collector is
// wired in, so callers never need nil checks.
type NopMetrics struct{}

func (NopMetrics) Hit()     {}
func (NopMetrics) Miss()    {}
func (NopMetrics) Expired() {}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe key/value store with a fixed TTL. A Set fully
// replaces the entry for a key: value and expiry change together, never
// independently.
type Cache[V any] struct {
	mu      sync.RWMutex
	items   map[string]entry[V]
	ttl     time.Duration
	metrics Metrics

	// now is swapped out in tests to drive expiry deterministically.
	now func() time.Time
}

// New creates a cache whose entries live for ttl after each Set.
// A nil metrics collector disables instrumentation.
func New[V any](ttl time.Duration, m Metrics) *Cache[V] {
	if m == nil {
		m = NopMetrics{}
	}
	return &Cache[V]{
		items:   make(map[string]entry[V]),
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
	}
}

// Get returns the value for key if it exists and has not expired. A miss is
// a normal outcome, not an error. Expired entries are purged on the way out.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		c.metrics.Miss()
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		// Purge, unless a concurrent Set already replaced the entry.
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		c.metrics.Expired()
		c.metrics.Miss()
		return zero, false
	}

	c.metrics.Hit()
	return e.value, true
}

// Set inserts or replaces the entry for key with a fresh expiry of now+TTL.
// It always succeeds; there is no capacity limit.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep removes every expired entry. Correctness never depends on it; reads
// already treat expired entries as absent.
func (c *Cache[V]) Sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			c.metrics.Expired()
		}
	}
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (c *Cache[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}
