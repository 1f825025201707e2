package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type ctxKey struct{}

// scope es el logger de un request. Es mutable para que los middlewares
// internos (sesión, auth) agreguen campos que también ve el access log.
type scope struct {
	mu sync.Mutex
	l  *zap.Logger
}

// ToContext abre un scope nuevo con l.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, &scope{l: l})
}

// From devuelve el logger del scope, o el global si no hay.
func From(ctx context.Context) *zap.Logger {
	if s := scopeFrom(ctx); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.l
	}
	return L()
}

// AddFields suma campos al scope actual. Sin scope no hace nada.
func AddFields(ctx context.Context, fields ...zap.Field) {
	if s := scopeFrom(ctx); s != nil && len(fields) > 0 {
		s.mu.Lock()
		s.l = s.l.With(fields...)
		s.mu.Unlock()
	}
}

func scopeFrom(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(ctxKey{}).(*scope)
	return s
}
