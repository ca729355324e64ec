package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

type presenceEntry[V any] struct {
	value   V
	expires time.Time
}

type presenceExpiry[K comparable] struct {
	key     K
	expires time.Time
}

// InMemoryPresenceCache is a process-local PresenceCache. Expired entries are
// swept on every Set and Len, and dropped early if they are read.
type InMemoryPresenceCache[K comparable, V any] struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[K]presenceEntry[V]
	// expiries holds one presenceExpiry per Set, oldest first. The ttl is
	// fixed, so insertion order is expiry order.
	expiries *list.List
	now      func() time.Time
}

// NewInMemoryPresenceCache creates a presence cache whose entries live for
// ttl. A ttl of zero keeps entries until they are deleted.
func NewInMemoryPresenceCache[K comparable, V any](ttl time.Duration) *InMemoryPresenceCache[K, V] {
	return &InMemoryPresenceCache[K, V]{
		ttl:      ttl,
		data:     make(map[K]presenceEntry[V]),
		expiries: list.New(),
		now:      time.Now,
	}
}

// Set stores value for key.
func (c *InMemoryPresenceCache[K, V]) Set(_ context.Context, key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)
	entry := presenceEntry[V]{value: value}
	if c.ttl > 0 {
		entry.expires = now.Add(c.ttl)
		c.expiries.PushBack(presenceExpiry[K]{key: key, expires: entry.expires})
	}
	c.data[key] = entry
	return nil
}

// Fetch returns the live entry for key.
func (c *InMemoryPresenceCache[K, V]) Fetch(_ context.Context, key K) (V, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	if ok && isExpired(entry.expires, c.now()) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if current, still := c.data[key]; still && current.expires.Equal(entry.expires) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		ok = false
	}
	if !ok {
		var zero V
		return zero, fmt.Errorf("presence of %v: %w", key, ErrNotFound)
	}
	return entry.value, nil
}

// Delete removes key.
func (c *InMemoryPresenceCache[K, V]) Delete(_ context.Context, key K) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Len returns the number of live entries.
func (c *InMemoryPresenceCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep(c.now())
	return len(c.data)
}

// Close is a no-op.
func (c *InMemoryPresenceCache[K, V]) Close() error {
	return nil
}

// sweep drops every entry that expired by now. c.mu must be held for writing.
func (c *InMemoryPresenceCache[K, V]) sweep(now time.Time) {
	for front := c.expiries.Front(); front != nil; front = c.expiries.Front() {
		exp := front.Value.(presenceExpiry[K])
		if !isExpired(exp.expires, now) {
			return
		}
		c.expiries.Remove(front)
		// A key set again since carries a later expiry and stays.
		if current, ok := c.data[exp.key]; ok && current.expires.Equal(exp.expires) {
			delete(c.data, exp.key)
		}
	}
}

func isExpired(expires, now time.Time) bool {
	return !expires.IsZero() && !now.Before(expires)
}
