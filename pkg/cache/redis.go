package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// KeyPrefix namespaces every key, e.g. "isprime:" so 97 is stored as "isprime:97".
	KeyPrefix string `yaml:"key_prefix"`
	// WriteTimeout bounds a background write-back. Defaults to 10s.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RedisCache is a generic cache backed by Redis. Values are stored as JSON.
// It lets several service replicas share memoized answers.
type RedisCache[K comparable, V any] struct {
	redisClient  *redis.Client
	logger       zerolog.Logger
	ttl          time.Duration
	keyPrefix    string
	writeTimeout time.Duration
	fallback     Fetcher[K, V]
	wg           sync.WaitGroup
}

// NewRedisCache creates and connects a new RedisCache.
// It pings the server before returning. fallback may be nil.
func NewRedisCache[K comparable, V any](
	ctx context.Context,
	cfg *RedisConfig,
	logger zerolog.Logger,
	fallback Fetcher[K, V],
) (*RedisCache[K, V], error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	return &RedisCache[K, V]{
		redisClient:  rdb,
		logger:       logger.With().Str("component", "RedisCache").Logger(),
		ttl:          cfg.CacheTTL,
		keyPrefix:    cfg.KeyPrefix,
		writeTimeout: writeTimeout,
		fallback:     fallback,
	}, nil
}

// Fetch retrieves an item by key. It first checks Redis. On a miss, if a
// fallback is configured, it fetches from the fallback, writes the result back
// to Redis in the background, and returns the value.
func (c *RedisCache[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	value, err := c.fetchFromRedis(ctx, key)
	if err == nil {
		return value, nil
	}

	// redis.Nil is an ordinary miss; anything else is a real failure.
	if !errors.Is(err, redis.Nil) {
		c.logger.Error().Err(err).Msg("Unexpected Redis error during fetch.")
		return value, err
	}

	var zero V
	if c.fallback == nil {
		return zero, fmt.Errorf("key '%v' not found in redis and no fallback is configured: %w", key, ErrNotFound)
	}

	sourceValue, sourceErr := c.fallback.Fetch(ctx, key)
	if sourceErr != nil {
		return zero, sourceErr
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
		defer cancel()
		if writeErr := c.WriteToCache(writeCtx, key, sourceValue); writeErr != nil {
			c.logger.Error().Err(writeErr).Str("key", c.redisKey(key)).Msg("Failed to write to cache in background.")
		}
	}()

	return sourceValue, nil
}

// WriteToCache stores value under key with the configured TTL.
func (c *RedisCache[K, V]) WriteToCache(ctx context.Context, key K, value V) error {
	stringKey := c.redisKey(key)
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal data for key %s: %w", stringKey, err)
	}

	if err := c.redisClient.Set(ctx, stringKey, jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis for key %s: %w", stringKey, err)
	}

	c.logger.Debug().Str("key", stringKey).Msg("Successfully stored data in Redis cache.")
	return nil
}

// Invalidate deletes key from Redis.
func (c *RedisCache[K, V]) Invalidate(ctx context.Context, key K) error {
	stringKey := c.redisKey(key)
	if err := c.redisClient.Del(ctx, stringKey).Err(); err != nil {
		return fmt.Errorf("redis del failed for key %s: %w", stringKey, err)
	}
	return nil
}

func (c *RedisCache[K, V]) fetchFromRedis(ctx context.Context, key K) (V, error) {
	var zero V
	stringKey := c.redisKey(key)
	cachedData, err := c.redisClient.Get(ctx, stringKey).Result()
	if err != nil {
		return zero, err
	}

	var value V
	if err := json.Unmarshal([]byte(cachedData), &value); err != nil {
		c.logger.Error().Err(err).Str("key", stringKey).Msg("Failed to unmarshal cached data.")
		return zero, fmt.Errorf("failed to unmarshal data: %w", err)
	}

	c.logger.Debug().Str("key", stringKey).Msg("Redis cache hit.")
	return value, nil
}

func (c *RedisCache[K, V]) redisKey(key K) string {
	return fmt.Sprintf("%s%v", c.keyPrefix, key)
}

// Close waits for pending write-backs, then closes the Redis client and the fallback.
func (c *RedisCache[K, V]) Close() error {
	c.wg.Wait()
	var err error
	if c.redisClient != nil {
		c.logger.Info().Msg("Closing Redis client connection...")
		err = c.redisClient.Close()
	}
	if c.fallback != nil {
		if fbErr := c.fallback.Close(); fbErr != nil && err == nil {
			err = fbErr
		}
	}
	return err
}
