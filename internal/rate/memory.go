package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	xrate "golang.org/x/time/rate"
)

// MemoryLimiter es un token bucket por clave (x/time/rate) para una sola
// instancia. Los buckets inactivos se descartan vía go-cache.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets *gocache.Cache
	now     func() time.Time
}

var _ MultiLimiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: gocache.New(10*time.Minute, time.Minute),
		now:     time.Now,
	}
}

// AllowWithLimits permite limit hits por window, recargando de forma continua.
func (m *MemoryLimiter) AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 || window <= 0 {
		return Result{Allowed: true}, nil
	}
	bk := fmt.Sprintf("%d:%s|%s", limit, window, key)

	m.mu.Lock()
	var lim *xrate.Limiter
	if v, ok := m.buckets.Get(bk); ok {
		lim = v.(*xrate.Limiter)
	} else {
		lim = xrate.NewLimiter(xrate.Every(window/time.Duration(limit)), limit)
	}
	// el bucket vive al menos una ventana desde el último uso
	m.buckets.Set(bk, lim, 2*window)
	m.mu.Unlock()

	now := m.now()
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return Result{Allowed: false, ResetIn: window}, nil
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return Result{Allowed: false, ResetIn: d}, nil
	}

	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	// tiempo hasta recuperar el bucket completo
	per := window / time.Duration(limit)
	return Result{Allowed: true, Remaining: remaining, ResetIn: time.Duration(limit-remaining) * per}, nil
}
