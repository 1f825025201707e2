package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/accountd/internal/http/services/auth"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/session"
)

// RememberResolver recrea una sesión autenticada desde el remember token.
type RememberResolver interface {
	ResumeRemembered(ctx context.Context, current *session.Session, token string) (*auth.Establishment, error)
}

type RememberConfig struct {
	Resolver   RememberResolver
	Sessions   *session.Manager
	CookieName string // Default: "accountd_remember"
	Secure     bool
}

// ClearRememberCookie expira la cookie remember.
func ClearRememberCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// WithRemember se aplica después de WithSessionLoad. Sólo actúa sobre sesiones
// sin usuario que traen la cookie remember.
func WithRemember(cfg RememberConfig) Middleware {
	if cfg.CookieName == "" {
		cfg.CookieName = "accountd_remember"
	}
	return func(next http.Handler) http.Handler {
		if cfg.Resolver == nil || cfg.Sessions == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := GetSession(r.Context())
			ck, err := r.Cookie(cfg.CookieName)
			if s.Authenticated() || err != nil || strings.TrimSpace(ck.Value) == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			est, err := cfg.Resolver.ResumeRemembered(ctx, s, ck.Value)
			if err != nil {
				logger.From(ctx).Debug("remember token rejected", logger.Err(err))
				ClearRememberCookie(w, cfg.CookieName, cfg.Secure)
				next.ServeHTTP(w, r)
				return
			}
			ns, err := cfg.Sessions.Store().Get(ctx, est.SessionID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			cfg.Sessions.WriteCookie(w, ns.ID)
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, ns)))
		})
	}
}
