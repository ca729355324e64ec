// Package cache provides generic caching components used to memoize
// primality answers and factorization results.
package cache

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by a cache that misses and has no fallback configured.
var ErrNotFound = errors.New("key not found in cache")

// Fetcher is anything that can produce a value for a key: a cache layer or a
// source of truth such as a computation.
type Fetcher[K any, V any] interface {
	Fetch(ctx context.Context, key K) (V, error)
	io.Closer
}

// Cache is a Fetcher that can also be written to and invalidated directly.
type Cache[K any, V any] interface {
	Fetcher[K, V]
	// WriteToCache adds an item to the cache.
	WriteToCache(ctx context.Context, key K, value V) error
	// Invalidate removes an item from this layer only. It does not cascade.
	Invalidate(ctx context.Context, key K) error
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc[K any, V any] func(ctx context.Context, key K) (V, error)

// Fetch calls f(ctx, key).
func (f FetcherFunc[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}

// Close is a no-op.
func (f FetcherFunc[K, V]) Close() error {
	return nil
}
