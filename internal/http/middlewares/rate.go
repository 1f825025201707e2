package middlewares

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/accountd/internal/http/errors"
	"github.com/dropDatabas3/accountd/internal/http/helpers"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/rate"
)

// extractJSONField lee hasta max bytes del body (si es JSON) para extraer un campo y repone el body.
func extractJSONField(r *http.Request, field string, max int64) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, r.Body, max)
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf.Bytes()), rest), rest}

	var tmp map[string]any
	if err := json.Unmarshal(buf.Bytes(), &tmp); err == nil {
		if s, ok := tmp[field].(string); ok {
			return s
		}
	}
	return ""
}

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPPathRateKey separa límites por endpoint sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return helpers.ClientIP(r) + "|" + r.URL.Path
}

// IPEmailRateKey agrega el email del body, como el throttle de login.
func IPEmailRateKey(r *http.Request) string {
	email := strings.ToLower(strings.TrimSpace(extractJSONField(r, "email", 4096)))
	if email == "" {
		email = "-"
	}
	return IPPathRateKey(r) + "|" + email
}

// SessionRateKey limita por sesión (challenge 2FA); sin sesión cae a IP.
func SessionRateKey(r *http.Request) string {
	if s := GetSession(r.Context()); s != nil {
		return "s:" + s.ID + "|" + r.URL.Path
	}
	return IPPathRateKey(r)
}

// RateLimitConfig configura el comportamiento del middleware de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
}

// WithRateLimit responde 429 al exceder el límite. Si el limiter falla, deja pasar.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPPathRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limit error", logger.Op("rate"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if res.ResetIn > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetIn).Unix(), 10))
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter()))
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
