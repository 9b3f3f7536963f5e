package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InMemoryCache is a TTL map used for resolved tenant configs, so repeated
// bootstraps within a session skip the directory round trip. Capacity is
// bounded; when full, expired entries go first, then an arbitrary one.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	maxSize int
	logger  *zap.Logger
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// NewInMemoryCache creates a bounded TTL cache and starts its sweeper.
func NewInMemoryCache(maxSize int, logger *zap.Logger) Cache {
	c := &InMemoryCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		logger:  logger,
	}
	go c.sweep()
	return c
}

// Get returns the cached value for key, or ErrNotFound when absent or
// expired. Expired entries are left for the sweeper.
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Set stores value under key for ttl, evicting if the cache is full.
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes the entry for key, if any.
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// evictLocked frees one slot, preferring an already-expired entry. Caller
// holds the write lock.
func (c *InMemoryCache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			return
		}
	}
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

// sweep periodically drops expired entries.
func (c *InMemoryCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for key, entry := range c.entries {
			if now.After(entry.expiresAt) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}

// Size reports the current entry count.
func (c *InMemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
