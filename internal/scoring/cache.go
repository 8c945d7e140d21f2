package scoring

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of scores retained by a default LRU cache.
const DefaultCacheSize = 2048

// CacheStats reports memoization effectiveness.
type CacheStats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// Cache memoizes score computations keyed by the scored text.
type Cache interface {
	// GetOrCompute returns the cached score for key, computing and storing it
	// on a miss.
	GetOrCompute(key string, compute func(string) float64) float64

	// Clear drops every entry and resets the counters.
	Clear()

	// Stats returns a snapshot of the counters.
	Stats() CacheStats
}

// LRUCache is a bounded, concurrency-safe score cache with least-recently-used
// eviction.
type LRUCache struct {
	entries  *lru.Cache[string, float64]
	capacity int
	hits     atomic.Uint64
	misses   atomic.Uint64
}

// NewLRUCache creates a cache holding at most capacity scores. Non-positive
// capacities fall back to DefaultCacheSize.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	entries, err := lru.New[string, float64](capacity)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &LRUCache{entries: entries, capacity: capacity}
}

func (c *LRUCache) GetOrCompute(key string, compute func(string) float64) float64 {
	if v, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return v
	}
	c.misses.Add(1)
	v := compute(key)
	c.entries.Add(key, v)
	return v
}

func (c *LRUCache) Clear() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *LRUCache) Stats() CacheStats {
	return CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Size:     c.entries.Len(),
		Capacity: c.capacity,
	}
}

// NopCache computes every score without storing it.
type NopCache struct {
	misses atomic.Uint64
}

func (c *NopCache) GetOrCompute(key string, compute func(string) float64) float64 {
	c.misses.Add(1)
	return compute(key)
}

func (c *NopCache) Clear() { c.misses.Store(0) }

func (c *NopCache) Stats() CacheStats {
	return CacheStats{Misses: c.misses.Load()}
}
