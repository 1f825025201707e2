package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/accountd/internal/http/errors"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/session"
)

// WithSessionLoad carga la sesión de la cookie (o inicia una) y la deja en el contexto.
func WithSessionLoad(m *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := m.LoadOrStart(w, r)
			if err != nil {
				logger.From(r.Context()).Error("session load failed", logger.Op("session"), logger.Err(err))
				errors.WriteError(w, errors.ErrServiceUnavailable)
				return
			}
			logger.AddFields(r.Context(), logger.SessionID(s.ID))
			if s.Authenticated() {
				logger.AddFields(r.Context(), logger.UserID(s.UserID))
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}
