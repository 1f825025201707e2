// Package router arma las rutas HTTP sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/accountd/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/accountd/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/accountd/internal/http/errors"
	mw "github.com/dropDatabas3/accountd/internal/http/middlewares"
	"github.com/dropDatabas3/accountd/internal/metrics"
	"github.com/dropDatabas3/accountd/internal/rate"
	"github.com/dropDatabas3/accountd/internal/session"
)

// Limits son los limiters por grupo de endpoints. Un nil desactiva el límite.
type Limits struct {
	Login   rate.Limiter // login y passkey authenticate
	Verify  rate.Limiter // confirm y challenge 2FA
	Forgot  rate.Limiter // forgot-password
	General rate.Limiter // check-user y demás endpoints anónimos
}

// Deps contiene todo lo que necesitan las rutas.
type Deps struct {
	Auth        *authctrl.Controllers
	Health      *healthctrl.HealthController
	Metrics     *metrics.Metrics
	MetricsPath string // Default: "/metrics"

	Sessions        *session.Manager
	Remember        mw.RememberConfig
	TwoFactorGate   mw.TwoFactorGate
	PasswordConfirm mw.PasswordConfirmChecker
	CSRF            mw.CSRFConfig
	CORSOrigins     []string
	Limits          Limits
	ChallengePath   string
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	if d.ChallengePath == "" {
		d.ChallengePath = "/two-factor-challenge"
	}
	if d.MetricsPath == "" {
		d.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(mw.WithRecover(), mw.WithRequestID())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	registerHealthRoutes(r, d)

	// Todo lo que usa la cookie de sesión.
	r.Group(func(r chi.Router) {
		r.Use(
			mw.WithMetrics(d.Metrics),
			mw.WithSecurityHeaders(),
			mw.WithCORS(d.CORSOrigins),
			mw.WithLogging(),
			mw.WithSessionLoad(d.Sessions),
			mw.WithRemember(d.Remember),
			mw.WithCSRF(d.CSRF),
		)
		registerGuestRoutes(r, d)
		registerAccountRoutes(r, d)
	})

	return r
}

// registerHealthRoutes: sin sesión ni logging (muy frecuentes).
func registerHealthRoutes(r chi.Router, d Deps) {
	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
		r.Get("/readyz", d.Health.Readyz)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, d.MetricsPath, d.Metrics.Handler())
	}
}

func limit(l rate.Limiter, key mw.RateKeyFunc) mw.Middleware {
	return mw.WithRateLimit(mw.RateLimitConfig{Limiter: l, KeyFunc: key})
}
