package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/illmade-knight/go-primefactors/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFallbackFetcher(t *testing.T) {
	ctx := context.Background()
	cfg := &cache.FallbackConfig{CacheWriteTimeout: time.Second}

	t.Run("Source result is written back", func(t *testing.T) {
		// Arrange
		var calls atomic.Int32
		store, err := cache.NewInMemoryLRUCache[uint64, bool](8, nil)
		require.NoError(t, err)
		fetcher, err := cache.NewCacheFallbackFetcher[uint64, bool](cfg, store, isOddSource(&calls), zerolog.Nop())
		require.NoError(t, err)

		// Act
		first, err := fetcher.Fetch(ctx, 15)
		require.NoError(t, err)
		fetcher.Flush()
		second, err := fetcher.Fetch(ctx, 15)
		require.NoError(t, err)

		// Assert
		assert.True(t, first)
		assert.True(t, second)
		assert.Equal(t, int32(1), calls.Load())
		_, ok := store.Peek(15)
		assert.True(t, ok)
		require.NoError(t, fetcher.Close())
	})

	t.Run("Source failure is wrapped", func(t *testing.T) {
		sourceErr := errors.New("no answer")
		store := cache.NewInMemoryCache[uint64, bool](nil)
		source := &mockFetcher[uint64, bool]{
			FetchFunc: func(context.Context, uint64) (bool, error) { return false, sourceErr },
		}
		fetcher, err := cache.NewCacheFallbackFetcher[uint64, bool](cfg, store, source, zerolog.Nop())
		require.NoError(t, err)

		_, err = fetcher.Fetch(ctx, 15)

		assert.ErrorIs(t, err, sourceErr)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("Nil dependencies are rejected", func(t *testing.T) {
		_, err := cache.NewCacheFallbackFetcher[uint64, bool](cfg, nil, nil, zerolog.Nop())
		require.Error(t, err)
	})
}
