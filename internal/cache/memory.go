package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps responses in process memory for the lifetime of one run
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates a memory cache; expired entries are purged every cleanup
func NewMemoryCache(ttl, cleanup time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(ttl, cleanup)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	body, ok := v.([]byte)
	return body, ok
}

// Set stores a copy of value. A zero ttl uses the cache default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Len returns the number of live entries
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}
