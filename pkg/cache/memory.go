package cache

import (
	"context"
	"sync"
)

// MemoryCache is an in-process cache. It backs deterministic tests and
// single-run deduplication when no cache directory is available.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

// Get retrieves the entry for identity recorded by the given resolver version.
func (c *MemoryCache) Get(ctx context.Context, identity string, resolverVersion int) (*Entry, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[identity]
	c.mu.RUnlock()

	if !ok || e.ResolverVersion != resolverVersion {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores an entry.
func (c *MemoryCache) Put(ctx context.Context, e Entry) error {
	c.mu.Lock()
	c.entries[e.Identity] = e
	c.mu.Unlock()
	return nil
}

// Close does nothing.
func (c *MemoryCache) Close() error { return nil }

var _ Cache = (*MemoryCache)(nil)

// NullCache never stores anything. Used when caching is disabled.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() *NullCache { return &NullCache{} }

// Get always returns a miss.
func (*NullCache) Get(context.Context, string, int) (*Entry, bool, error) { return nil, false, nil }

// Put does nothing.
func (*NullCache) Put(context.Context, Entry) error { return nil }

// Close does nothing.
func (*NullCache) Close() error { return nil }

var _ Cache = (*NullCache)(nil)
