package cache

import "time"

// LayeredCache asks each tier in order. A hit is copied into the faster
// tiers that missed it.
type LayeredCache struct {
	tiers []Cache
}

// NewLayeredCache puts a memory cache in front of a disk cache at dir
func NewLayeredCache(memoryTTL time.Duration, dir string, diskTTL time.Duration) *LayeredCache {
	return NewTiered(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(dir, diskTTL))
}

// NewTiered builds a layered cache from tiers, fastest first
func NewTiered(tiers ...Cache) *LayeredCache {
	return &LayeredCache{tiers: tiers}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, tier := range c.tiers {
		body, ok := tier.Get(key)
		if !ok {
			continue
		}
		for _, faster := range c.tiers[:i] {
			_ = faster.Set(key, body, 0)
		}
		return body, true
	}
	return nil, false
}

// Set writes every tier and reports the first failure
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	var first error
	for _, tier := range c.tiers {
		if err := tier.Set(key, value, ttl); err != nil && first == nil {
			first = err
		}
	}
	return first
}
