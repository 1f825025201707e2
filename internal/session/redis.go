package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 8

// RedisStore guarda cada sesión como JSON bajo prefix+"sess:"+sha256(id).
// Update es WATCH/MULTI/EXEC con reintento optimista.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + "sess:" + storageKey(id)
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	return decode(id, b)
}

func (r *RedisStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(s.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Update(ctx context.Context, id string, ttl time.Duration, fn UpdateFunc) (*Session, error) {
	key := r.key(id)
	for i := 0; i < maxUpdateRetries; i++ {
		var out *Session
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			b, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			s, err := decode(id, b)
			if err != nil {
				return err
			}
			if err := fn(s); err != nil {
				return err
			}
			nb, err := encode(s)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, nb, ttl)
				return nil
			})
			if err == nil {
				out = s
			}
			return err
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return nil, ErrNotFound
		case err != nil:
			return nil, err
		}
		return out, nil
	}
	return nil, ErrConflict
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
