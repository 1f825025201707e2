package session

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore guarda sesiones serializadas en go-cache; un mutex cubre Update.
type MemoryStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	v, ok := m.c.Get(storageKey(id))
	if !ok {
		return nil, ErrNotFound
	}
	return decode(id, v.([]byte))
}

func (m *MemoryStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Set(storageKey(s.ID), b, ttl)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, ttl time.Duration, fn UpdateFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.c.Get(storageKey(id))
	if !ok {
		return nil, ErrNotFound
	}
	s, err := decode(id, v.([]byte))
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	b, err := encode(s)
	if err != nil {
		return nil, err
	}
	m.c.Set(storageKey(id), b, ttl)
	return s, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Delete(storageKey(id))
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }
