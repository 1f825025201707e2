// Package rate cuenta intentos por clave (IP, email, sesión) para los
// endpoints que reciben secretos: login, códigos 2FA, reset de password.
package rate

import (
	"context"
	"time"
)

// Result es la decisión para un hit.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetIn es cuánto falta para que la clave vuelva a tener cupo.
	ResetIn time.Duration
}

// RetryAfter redondea ResetIn hacia arriba a segundos enteros (mínimo 1).
func (r Result) RetryAfter() int {
	secs := int((r.ResetIn + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// MultiLimiter recibe limit+window en cada llamada, así un mismo backend
// sirve a todos los grupos de endpoints.
type MultiLimiter interface {
	AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Bound fija limit+window de un MultiLimiter y lo expone como Limiter.
type Bound struct {
	Multi  MultiLimiter
	Limit  int
	Window time.Duration
}

func (b Bound) Allow(ctx context.Context, key string) (Result, error) {
	return b.Multi.AllowWithLimits(ctx, key, b.Limit, b.Window)
}
