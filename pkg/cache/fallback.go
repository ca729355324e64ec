package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FallbackConfig holds configuration for the cache-then-source fetcher.
type FallbackConfig struct {
	CacheWriteTimeout time.Duration
}

// CacheFallbackFetcher combines a cache that cannot compute values itself
// (Firestore, a plain LRU) with a source of truth. Source answers are written
// back to the cache in the background.
type CacheFallbackFetcher[K comparable, V any] struct {
	cacheTimeout time.Duration
	logger       zerolog.Logger
	cache        Cache[K, V]
	source       Fetcher[K, V]
	wg           sync.WaitGroup
}

// NewCacheFallbackFetcher creates a Fetcher using a cache-then-source strategy.
func NewCacheFallbackFetcher[K comparable, V any](
	cfg *FallbackConfig,
	cache Cache[K, V],
	source Fetcher[K, V],
	logger zerolog.Logger,
) (*CacheFallbackFetcher[K, V], error) {
	if cache == nil || source == nil {
		return nil, fmt.Errorf("cache and source cannot be nil")
	}
	timeout := 5 * time.Second
	if cfg != nil && cfg.CacheWriteTimeout > 0 {
		timeout = cfg.CacheWriteTimeout
	}
	return &CacheFallbackFetcher[K, V]{
		cacheTimeout: timeout,
		logger:       logger.With().Str("component", "CacheFallbackFetcher").Logger(),
		cache:        cache,
		source:       source,
	}, nil
}

// Fetch tries the cache, then the source.
func (c *CacheFallbackFetcher[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	var zero V
	value, err := c.cache.Fetch(ctx, key)
	if err == nil {
		c.logger.Debug().Str("key", fmt.Sprintf("%v", key)).Msg("Cache hit.")
		return value, nil
	}
	c.logger.Debug().Err(err).Msg("Cache miss. Falling back to source.")

	value, err = c.source.Fetch(ctx, key)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error fetching from source.")
		return zero, fmt.Errorf("error fetching from source: %w", err)
	}

	c.wg.Add(1)
	go func(k K, v V) {
		defer c.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), c.cacheTimeout)
		defer cancel()
		if writeErr := c.cache.WriteToCache(writeCtx, k, v); writeErr != nil {
			c.logger.Error().Err(writeErr).Msg("Failed to write to cache in background.")
		}
	}(key, value)

	return value, nil
}

// Flush blocks until all pending background writes have finished.
func (c *CacheFallbackFetcher[K, V]) Flush() {
	c.wg.Wait()
}

// Close waits for pending writes, then closes the cache and the source.
func (c *CacheFallbackFetcher[K, V]) Close() error {
	c.wg.Wait()
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("error closing cache: %w", err)
	}
	if err := c.source.Close(); err != nil {
		return fmt.Errorf("error closing source: %w", err)
	}
	return nil
}
