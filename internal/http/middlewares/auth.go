package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/accountd/internal/http/errors"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// RequireAuth exige una sesión autenticada. Debe ir después de WithSessionLoad.
func RequireAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetSession(r.Context()).Authenticated() {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TwoFactorGate es lo que el gate necesita del TwoFactorService.
type TwoFactorGate interface {
	Enabled(ctx context.Context, userID string) (bool, error)
	Challenge(ctx context.Context, sessionID, userID string, remember bool) error
}

// RequireTwoFactor bloquea a usuarios con 2FA confirmado cuya sesión no tiene
// la marca de verificación para ese mismo user id. Deja el challenge pendiente
// en la sesión y redirige (navegador) o responde 403 (API).
func RequireTwoFactor(gate TwoFactorGate, challengePath string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			s := GetSession(ctx)
			if !s.Authenticated() || s.TwoFactorVerifiedFor(s.UserID) {
				next.ServeHTTP(w, r)
				return
			}

			on, err := gate.Enabled(ctx, s.UserID)
			if err != nil {
				// fail closed
				logger.From(ctx).Error("two factor gate lookup failed", logger.Op("twofactor.gate"), logger.Err(err))
				errors.WriteError(w, errors.ErrServiceUnavailable)
				return
			}
			if !on {
				next.ServeHTTP(w, r)
				return
			}

			if s.TwoFactorPending == nil || s.TwoFactorPending.UserID != s.UserID {
				if err := gate.Challenge(ctx, s.ID, s.UserID, s.Remember); err != nil {
					logger.From(ctx).Error("two factor challenge failed", logger.Op("twofactor.gate"), logger.Err(err))
					errors.WriteError(w, errors.ErrServiceUnavailable)
					return
				}
			}

			if r.Method == http.MethodGet && wantsHTML(r) {
				http.Redirect(w, r, challengePath, http.StatusFound)
				return
			}
			errors.WriteError(w, errors.ErrTwoFactorRequired.WithDetail(challengePath))
		})
	}
}

// PasswordConfirmChecker consulta la frescura de la confirmación de password.
type PasswordConfirmChecker interface {
	Status(ctx context.Context, sessionID string) (bool, error)
}

// RequirePasswordConfirmed responde 423 si la sesión no confirmó la password recientemente.
func RequirePasswordConfirmed(checker PasswordConfirmChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := GetSession(r.Context())
			if s == nil {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			ok, err := checker.Status(r.Context(), s.ID)
			if err != nil {
				errors.WriteError(w, errors.ErrServiceUnavailable)
				return
			}
			if !ok {
				errors.WriteError(w, errors.ErrPasswordConfirmationRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
