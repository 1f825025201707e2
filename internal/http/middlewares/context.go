package middlewares

import (
	"context"

	"github.com/dropDatabas3/accountd/internal/session"
)

type ctxKey string

const (
	ctxSessionKey   ctxKey = "session"
	ctxUserIDKey    ctxKey = "user_id"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithSession inyecta la sesión cargada; si está autenticada también el user ID.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	ctx = context.WithValue(ctx, ctxSessionKey, s)
	if s.Authenticated() {
		ctx = WithUserID(ctx, s.UserID)
	}
	return ctx
}

// WithUserID inyecta el user ID en el contexto
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetSession obtiene la sesión del contexto.
// Retorna nil si el middleware de sesión no se aplicó.
func GetSession(ctx context.Context) *session.Session {
	if v := ctx.Value(ctxSessionKey); v != nil {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// GetUserID obtiene el user ID del contexto.
// Retorna cadena vacía si no hay user ID.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(ctxUserIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
