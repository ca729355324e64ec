package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

type lruCacheItem[K comparable, V any] struct {
	key   K
	value V
}

// InMemoryLRUCache is a thread-safe, size-limited, in-memory cache with a
// Least Recently Used eviction policy. It is the bounded alternative to
// InMemoryCache for callers that may see many distinct, large keys.
type InMemoryLRUCache[K comparable, V any] struct {
	maxSize  int
	fallback Fetcher[K, V]

	mu    sync.Mutex
	ll    *list.List          // front is most recently used
	cache map[K]*list.Element // key -> element in ll
}

// NewInMemoryLRUCache creates a new LRU cache holding at most maxSize items.
// maxSize must be > 0. fallback may be nil.
func NewInMemoryLRUCache[K comparable, V any](maxSize int, fallback Fetcher[K, V]) (*InMemoryLRUCache[K, V], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("maxSize must be greater than 0")
	}
	return &InMemoryLRUCache[K, V]{
		maxSize:  maxSize,
		fallback: fallback,
		ll:       list.New(),
		cache:    make(map[K]*list.Element),
	}, nil
}

// Fetch returns the value for key, marking it most recently used. On a miss the
// fallback is asked, the answer is stored, and the least recently used entry is
// evicted if the cache is over capacity.
func (c *InMemoryLRUCache[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	c.mu.Lock()
	if elem, ok := c.cache[key]; ok {
		c.ll.MoveToFront(elem)
		c.mu.Unlock()
		return elem.Value.(*lruCacheItem[K, V]).value, nil
	}
	c.mu.Unlock()

	var zero V
	if c.fallback == nil {
		return zero, fmt.Errorf("key '%v' not found in LRU cache and no fallback is configured: %w", key, ErrNotFound)
	}

	sourceValue, err := c.fallback.Fetch(ctx, key)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.ll.MoveToFront(elem)
		return elem.Value.(*lruCacheItem[K, V]).value, nil
	}
	c.insert(key, sourceValue)
	return sourceValue, nil
}

// WriteToCache stores value under key, replacing any previous entry.
func (c *InMemoryLRUCache[K, V]) WriteToCache(_ context.Context, key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		elem.Value.(*lruCacheItem[K, V]).value = value
		c.ll.MoveToFront(elem)
		return nil
	}
	c.insert(key, value)
	return nil
}

// Invalidate removes key from the cache.
func (c *InMemoryLRUCache[K, V]) Invalidate(_ context.Context, key K) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.ll.Remove(elem)
		delete(c.cache, key)
	}
	return nil
}

// Peek returns the cached value without touching recency or the fallback.
func (c *InMemoryLRUCache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		return elem.Value.(*lruCacheItem[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Len reports the number of cached entries.
func (c *InMemoryLRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// insert must be called with c.mu held.
func (c *InMemoryLRUCache[K, V]) insert(key K, value V) {
	c.cache[key] = c.ll.PushFront(&lruCacheItem[K, V]{key: key, value: value})
	if c.ll.Len() > c.maxSize {
		c.evict()
	}
}

// evict removes the least recently used item. Must be called with c.mu held.
func (c *InMemoryLRUCache[K, V]) evict() {
	elementToRemove := c.ll.Back()
	if elementToRemove != nil {
		itemToRemove := c.ll.Remove(elementToRemove).(*lruCacheItem[K, V])
		delete(c.cache, itemToRemove.key)
	}
}

// Close closes the fallback, if any.
func (c *InMemoryLRUCache[K, V]) Close() error {
	if c.fallback != nil {
		return c.fallback.Close()
	}
	return nil
}
