package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/accountd/internal/http/errors"
	tokens "github.com/dropDatabas3/accountd/internal/security/token"
)

// CSRFConfig configura el middleware CSRF.
type CSRFConfig struct {
	HeaderName string // Default: "X-CSRF-Token"
	CookieName string // Default: "csrf_token"
}

func (c CSRFConfig) withDefaults() CSRFConfig {
	if strings.TrimSpace(c.HeaderName) == "" {
		c.HeaderName = "X-CSRF-Token"
	}
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = "csrf_token"
	}
	return c
}

// WithCSRF exige double-submit (header == cookie) en métodos inseguros.
func WithCSRF(cfg CSRFConfig) Middleware {
	cfg = cfg.withDefaults()

	isUnsafe := func(m string) bool {
		switch strings.ToUpper(m) {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			return true
		default:
			return false
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafe(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			hdr := strings.TrimSpace(r.Header.Get(cfg.HeaderName))
			ck, _ := r.Cookie(cfg.CookieName)
			if hdr == "" || ck == nil || strings.TrimSpace(ck.Value) == "" || !tokens.Equal(hdr, ck.Value) {
				errors.WriteError(w, errors.ErrInvalidCSRF)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
