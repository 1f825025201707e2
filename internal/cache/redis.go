package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient implementa Client usando Redis.
type redisClient struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
}

// NewRedis envuelve un cliente existente; no es dueño de la conexión.
func NewRedis(rdb redis.UniversalClient, prefix string, defaultTTL time.Duration) *redisClient {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &redisClient{client: rdb, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, prefixed(c.prefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, prefixed(c.prefix, key), value, ttl).Err()
}

// Delete usa UNLINK para no bloquear Redis con valores grandes.
func (c *redisClient) Delete(ctx context.Context, key string) error {
	return c.client.Unlink(ctx, prefixed(c.prefix, key)).Err()
}
