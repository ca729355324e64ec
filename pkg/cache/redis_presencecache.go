package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisPresenceCache is a PresenceCache shared by every replica through Redis.
// Entries expire after RedisConfig.CacheTTL.
type RedisPresenceCache[K comparable, V any] struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	ttl         time.Duration
	keyPrefix   string
}

// NewRedisPresenceCache connects to Redis and pings it before returning.
func NewRedisPresenceCache[K comparable, V any](
	ctx context.Context,
	cfg *RedisConfig,
	logger zerolog.Logger,
) (*RedisPresenceCache[K, V], error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis for presence cache: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Str("key_prefix", cfg.KeyPrefix).Msg("Connected to Redis for presence cache.")

	return &RedisPresenceCache[K, V]{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisPresenceCache").Logger(),
		ttl:         cfg.CacheTTL,
		keyPrefix:   cfg.KeyPrefix,
	}, nil
}

// Set stores value as JSON with the configured TTL.
func (c *RedisPresenceCache[K, V]) Set(ctx context.Context, key K, value V) error {
	redisKey := c.redisKey(key)
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal presence for key %s: %w", redisKey, err)
	}
	if err := c.redisClient.Set(ctx, redisKey, jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", redisKey, err)
	}
	return nil
}

// Fetch returns the entry for key. A missing or expired key wraps ErrNotFound.
func (c *RedisPresenceCache[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	var zero V
	redisKey := c.redisKey(key)
	cachedData, err := c.redisClient.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, fmt.Errorf("presence of %s: %w", redisKey, ErrNotFound)
		}
		return zero, fmt.Errorf("redis get failed for key %s: %w", redisKey, err)
	}
	var value V
	if err := json.Unmarshal(cachedData, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal presence for key %s: %w", redisKey, err)
	}
	return value, nil
}

// Delete removes key.
func (c *RedisPresenceCache[K, V]) Delete(ctx context.Context, key K) error {
	redisKey := c.redisKey(key)
	if err := c.redisClient.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("redis del failed for key %s: %w", redisKey, err)
	}
	return nil
}

func (c *RedisPresenceCache[K, V]) redisKey(key K) string {
	return fmt.Sprintf("%s%v", c.keyPrefix, key)
}

// Close closes the Redis client.
func (c *RedisPresenceCache[K, V]) Close() error {
	return c.redisClient.Close()
}
