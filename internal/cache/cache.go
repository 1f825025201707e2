// Package cache provee un key-value con TTL sobre memoria (go-cache) o Redis.
//
// Se usa para datos derivados y baratos de recalcular (p.ej. el estado 2FA
// de un usuario); nunca como fuente de verdad.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL; 0 usa el default del backend.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete no falla si la key no existe.
	Delete(ctx context.Context, key string) error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver        string // "memory" | "redis"
	Prefix        string
	DefaultTTL    time.Duration
	CleanupPeriod time.Duration
}

var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente según cfg.Driver. rdb sólo se usa con "redis".
func New(cfg Config, rdb redis.UniversalClient) (Client, error) {
	switch cfg.Driver {
	case "redis":
		if rdb == nil {
			return nil, errors.New("cache: redis driver without client")
		}
		return NewRedis(rdb, cfg.Prefix, cfg.DefaultTTL), nil
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL, cfg.CleanupPeriod), nil
	default:
		return nil, errors.New("cache: unknown driver " + cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
