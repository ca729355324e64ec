package cache_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/illmade-knight/go-primefactors/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChainedCache_FallbackAndInvalidation walks a two-level chain:
// L1 (LRU) -> L2 (unbounded, standing in for Redis) -> source.
func TestChainedCache_FallbackAndInvalidation(t *testing.T) {
	ctx := context.Background()
	const key uint64 = 97

	var calls atomic.Int32
	l2 := cache.NewInMemoryCache[uint64, bool](isOddSource(&calls))
	l1, err := cache.NewInMemoryLRUCache[uint64, bool](10, l2)
	require.NoError(t, err)

	t.Run("First Fetch causes cache miss and fallback", func(t *testing.T) {
		value, err := l1.Fetch(ctx, key)

		require.NoError(t, err)
		assert.True(t, value)
		assert.Equal(t, int32(1), calls.Load(), "Source should be called exactly once")
	})

	t.Run("Second Fetch is a cache hit", func(t *testing.T) {
		value, err := l1.Fetch(ctx, key)

		require.NoError(t, err)
		assert.True(t, value)
		assert.Equal(t, int32(1), calls.Load(), "Source should NOT be called on a cache hit")
	})

	t.Run("Invalidate removes the key from L1 only", func(t *testing.T) {
		var c cache.Cache[uint64, bool] = l1
		require.NoError(t, c.Invalidate(ctx, key))
		_, ok := l1.Peek(key)
		assert.False(t, ok)
		_, ok = l2.Peek(key)
		assert.True(t, ok, "invalidation does not cascade")
	})

	t.Run("Fetch after invalidation is served by L2", func(t *testing.T) {
		value, err := l1.Fetch(ctx, key)

		require.NoError(t, err)
		assert.True(t, value)
		assert.Equal(t, int32(1), calls.Load(), "L2 still holds the answer")
	})
}
