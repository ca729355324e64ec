package cache

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryCache is a thread-safe, unbounded, in-memory cache. Entries live
// until they are invalidated or the process exits.
// On a miss it consults the optional fallback and keeps the answer.
type InMemoryCache[K comparable, V any] struct {
	fallback Fetcher[K, V]

	mu   sync.RWMutex
	data map[K]V
}

// NewInMemoryCache creates a new in-memory cache. fallback may be nil.
func NewInMemoryCache[K comparable, V any](fallback Fetcher[K, V]) *InMemoryCache[K, V] {
	return &InMemoryCache[K, V]{
		fallback: fallback,
		data:     make(map[K]V),
	}
}

// Fetch returns the cached value for key. On a miss the fallback is asked and
// its answer is stored before returning.
func (c *InMemoryCache[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	c.mu.RLock()
	value, ok := c.data[key]
	c.mu.RUnlock()
	if ok {
		return value, nil
	}

	var zero V
	if c.fallback == nil {
		return zero, fmt.Errorf("key '%v' not found in cache and no fallback is configured: %w", key, ErrNotFound)
	}

	sourceValue, err := c.fallback.Fetch(ctx, key)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have filled the key while the fallback ran; the
	// first stored value wins so readers never see it change.
	if existing, ok := c.data[key]; ok {
		return existing, nil
	}
	c.data[key] = sourceValue
	return sourceValue, nil
}

// Peek returns the cached value without consulting the fallback.
func (c *InMemoryCache[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.data[key]
	return value, ok
}

// WriteToCache adds an item to the cache.
func (c *InMemoryCache[K, V]) WriteToCache(_ context.Context, key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

// Invalidate removes key from the cache.
func (c *InMemoryCache[K, V]) Invalidate(_ context.Context, key K) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Len reports the number of cached entries.
func (c *InMemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close closes the fallback, if any.
func (c *InMemoryCache[K, V]) Close() error {
	if c.fallback != nil {
		return c.fallback.Close()
	}
	return nil
}
