package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joy095/hallbooking/logger"
)

// RedisCache is a Cache backed by Redis. Errors degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache returns nil when client is nil so callers can pass the
// result straight into NewResolver.
func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	if client == nil {
		return nil
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WarnLogger.Warnf("tenant cache read %s failed: %v", key, err)
		}
		return "", false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		logger.WarnLogger.Warnf("tenant cache write %s failed: %v", key, err)
	}
}
