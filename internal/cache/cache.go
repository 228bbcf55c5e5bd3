// Package cache implements the TTL-bounded caches shared across search
// requests: tag lookups, assembled result pages, and pagination cursor
// state. Eviction is an approximate LRU: when a cache overflows, a
// bulk prune keeps a configured fraction of entries biased toward the
// most recently used and discards the rest.
package cache

import (
	"sort"
	"sync"
	"time"
)

// Stats reports cache performance counters.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
}

// TTLCache is a thread-safe cache with per-entry expiry and
// keep-ratio bulk pruning. Entries older than the TTL are treated as
// absent regardless of cache size.
type TTLCache[V any] struct {
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	keepRatio  float64
	items      map[string]*entry[V]
	stats      Stats
}

type entry[V any] struct {
	value      V
	storedAt   time.Time
	accessedAt time.Time
}

// New creates a TTLCache. Zero or negative maxEntries falls back to
// 1000; a keepRatio outside (0, 1) falls back to 0.75. A zero TTL
// means entries never expire.
func New[V any](ttl time.Duration, maxEntries int, keepRatio float64) *TTLCache[V] {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if keepRatio <= 0 || keepRatio >= 1 {
		keepRatio = 0.75
	}
	return &TTLCache[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		keepRatio:  keepRatio,
		items:      make(map[string]*entry[V]),
	}
}

// Get returns the cached value for key. Expired entries are removed
// and reported as absent.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if c.expired(e) {
		delete(c.items, key)
		c.stats.Evictions++
		c.stats.Misses++
		return zero, false
	}

	e.accessedAt = time.Now()
	c.stats.Hits++
	return e.value, true
}

// Put stores a value, pruning the cache first if it is full. Cache
// population is best-effort by design; Put never fails.
func (c *TTLCache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.items[key]; ok {
		e.value = value
		e.storedAt = now
		e.accessedAt = now
		return
	}

	if len(c.items) >= c.maxEntries {
		c.prune()
	}
	c.items[key] = &entry[V]{value: value, storedAt: now, accessedAt: now}
}

// Delete removes a single entry.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all entries.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Evictions += uint64(len(c.items))
	c.items = make(map[string]*entry[V])
}

// Len returns the current entry count, including any not-yet-pruned
// expired entries.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *TTLCache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Entries = len(c.items)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// prune drops expired entries, then bulk-evicts down to
// keepRatio*maxEntries entries keeping the most recently used. The
// recency ordering is computed once per prune rather than maintained
// per access; this is an approximate LRU, trading eviction precision
// for cheap bulk cleanup. Caller must hold the write lock.
func (c *TTLCache[V]) prune() {
	for key, e := range c.items {
		if c.expired(e) {
			delete(c.items, key)
			c.stats.Evictions++
		}
	}

	keep := int(float64(c.maxEntries) * c.keepRatio)
	if len(c.items) <= keep {
		return
	}

	type aged struct {
		key      string
		accessed time.Time
	}
	byAge := make([]aged, 0, len(c.items))
	for key, e := range c.items {
		byAge = append(byAge, aged{key, e.accessedAt})
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].accessed.After(byAge[j].accessed)
	})

	for _, a := range byAge[keep:] {
		delete(c.items, a.key)
		c.stats.Evictions++
	}
}

func (c *TTLCache[V]) expired(e *entry[V]) bool {
	if c.ttl <= 0 {
		return false
	}
	return time.Since(e.storedAt) > c.ttl
}
