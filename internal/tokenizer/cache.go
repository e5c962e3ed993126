package tokenizer

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of token counts kept when none is configured.
const DefaultCacheSize = 10000

// Cache provides in-memory LRU caching of token counts keyed by CacheKey
type Cache struct {
	cache *lru.Cache[string, int]
}

// NewCache creates a new token-count cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, int](maxLen)
	if err != nil {
		cache, _ = lru.New[string, int](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a cached count
func (c *Cache) Get(key string) (int, bool) {
	return c.cache.Get(key)
}

// Set stores a count with automatic LRU eviction
func (c *Cache) Set(key string, n int) {
	c.cache.Add(key, n)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}
