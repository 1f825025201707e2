package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache. Útil para dev, tests y
// despliegues de una sola instancia.
type memoryClient struct {
	prefix     string
	defaultTTL time.Duration
	c          *gocache.Cache
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string, defaultTTL, cleanup time.Duration) *memoryClient {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &memoryClient{
		prefix:     prefix,
		defaultTTL: defaultTTL,
		c:          gocache.New(defaultTTL, cleanup),
	}
}

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.c.Set(prefixed(m.prefix, key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}
