package weather

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// TTLCache is a thread-safe string cache with per-entry expiry. Expired
// entries are kept so callers can fall back to stale data when a refresh
// fails.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewTTLCache creates an empty cache.
func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached value if present and fresh.
func (c *TTLCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// GetStale returns the cached value even if expired.
func (c *TTLCache) GetStale(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	return e.value, true
}

// Set stores a value with the given TTL.
func (c *TTLCache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

// GetOrSet returns the fresh cached value, or runs fn and caches its result.
// If fn fails and a stale value exists, the stale value is returned instead
// of the error.
func (c *TTLCache) GetOrSet(key string, ttl time.Duration, fn func() (string, error)) (string, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		if stale, ok := c.GetStale(key); ok {
			return stale, nil
		}
		return "", err
	}
	if v != "" {
		c.Set(key, v, ttl)
	}
	return v, nil
}
