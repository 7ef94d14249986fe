// Package statcache memoises statistic computations across metric calls.
package statcache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/observability"
	"github.com/couchcryptid/forecast-verification-service/internal/statistic"
)

// CachedComputer wraps a statistic.Computer with an in-memory LRU cache.
// Concurrent requests for the same key share one computation. Cached cubes
// are shared between callers and must not be modified.
type CachedComputer struct {
	inner   statistic.Computer
	cache   *lruCache
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedComputer creates a cache decorator around a statistic computer.
// metrics may be nil.
func NewCachedComputer(inner statistic.Computer, maxEntries int, metrics *observability.Metrics) *CachedComputer {
	return &CachedComputer{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedComputer) Compute(ctx context.Context, key statistic.Key, in *statistic.Inputs) (*grid.Cube, error) {
	k := key.String()
	if cube, ok := c.cache.get(k); ok {
		c.record("hit")
		return cube, nil
	}

	v, err, shared := c.group.Do(k, func() (any, error) {
		cube, err := c.inner.Compute(ctx, key, in)
		if err != nil {
			return nil, err
		}
		// Unavailable statistics stay uncached so a later climatology can fill them.
		if cube != nil {
			c.cache.put(k, cube)
		}
		return cube, nil
	})
	if shared {
		c.record("shared")
	} else {
		c.record("miss")
	}
	if err != nil {
		return nil, err
	}
	cube, _ := v.(*grid.Cube)
	return cube, nil
}

// Len returns the number of cached statistics.
func (c *CachedComputer) Len() int {
	return c.cache.len()
}

func (c *CachedComputer) record(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.StatisticCache.WithLabelValues(result).Inc()
}

// lruCache is a simple thread-safe LRU cache of statistic cubes.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *grid.Cube
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*grid.Cube, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *grid.Cube) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
