// Package metrics expone contadores Prometheus del servicio.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accountd"

// Resultados usados como label "result".
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRecovery = "recovery"
	ResultClone    = "clone_detected"
	ResultExpired  = "expired"
)

// Metrics agrupa colectores sobre un registry propio. Un *Metrics nil es válido
// y descarta todo, así los services no necesitan chequear.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	twoFactorAttempts *prometheus.CounterVec
	passkeyCeremonies *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Número total de requests procesadas",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de los requests HTTP",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		twoFactorAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "twofactor_attempts_total",
			Help:      "Intentos de código 2FA por resultado",
		}, []string{"result"}),
		passkeyCeremonies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passkey_ceremonies_total",
			Help:      "Ceremonias WebAuthn por tipo y resultado",
		}, []string{"ceremony", "result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.twoFactorAttempts,
		m.passkeyCeremonies,
	)
	return m
}

// Registry expone el registry para collectors adicionales (p.ej. pool de DB).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) TwoFactorAttempt(result string) {
	if m == nil {
		return
	}
	m.twoFactorAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) PasskeyCeremony(ceremony, result string) {
	if m == nil {
		return
	}
	m.passkeyCeremonies.WithLabelValues(ceremony, result).Inc()
}
