package cache

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTLCache is a bounded, thread-safe cache whose entries expire after a fixed TTL.
// Least recently used entries are evicted first once the size limit is reached.
type TTLCache[V any] struct {
	lru       *expirable.LRU[string, V]
	ttl       time.Duration
	size      int
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewTTLCache creates a new TTL cache holding at most size entries
func NewTTLCache[V any](size int, ttl time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		ttl:  ttl,
		size: size,
	}
	c.lru = expirable.NewLRU[string, V](size, func(key string, _ V) {
		c.evictions.Add(1)
	}, ttl)

	slog.Info("TTL cache initialized",
		"ttl", ttl.String(),
		"size", size)

	return c
}

// Set stores a value in the cache with TTL
func (c *TTLCache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
	slog.Debug("Cache entry set", "key", key)
}

// Get retrieves a value from the cache if it exists and hasn't expired
func (c *TTLCache[V]) Get(key string) (V, bool) {
	value, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return value, false
	}

	c.hits.Add(1)
	slog.Debug("Cache hit", "key", key)
	return value, true
}

// Delete removes a specific key from the cache
func (c *TTLCache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Size returns the current number of live items in the cache
func (c *TTLCache[V]) Size() int {
	return c.lru.Len()
}

// Clear removes all items from the cache
func (c *TTLCache[V]) Clear() {
	itemCount := c.lru.Len()
	c.lru.Purge()

	slog.Debug("Cache cleared", "removed_items", itemCount)
}

// CacheStats describes cache usage
type CacheStats struct {
	Entries   int    `json:"entries"`
	MaxSize   int    `json:"maxSize"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
	TTL       string `json:"ttl"`
}

// GetStats returns cache statistics
func (c *TTLCache[V]) GetStats() CacheStats {
	return CacheStats{
		Entries:   c.lru.Len(),
		MaxSize:   c.size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		TTL:       c.ttl.String(),
	}
}
