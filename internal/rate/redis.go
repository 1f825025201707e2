package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter es una ventana fija compartida entre réplicas. La ventana
// arranca con el primer hit de la clave.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

var _ MultiLimiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 || window <= 0 {
		return Result{Allowed: true}, nil
	}
	k := fmt.Sprintf("%s%d/%s:%s", l.prefix, limit, window, strings.ReplaceAll(key, " ", "_"))

	// SET NX fija el TTL sólo en el primer hit; INCR lo conserva.
	var hits *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, k, 0, window)
		hits = p.Incr(ctx, k)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate: redis: %w", err)
	}

	reset := ttl.Val()
	if reset <= 0 {
		reset = window
	}
	n := int(hits.Val())
	if n > limit {
		return Result{Allowed: false, ResetIn: reset}, nil
	}
	return Result{Allowed: true, Remaining: limit - n, ResetIn: reset}, nil
}
