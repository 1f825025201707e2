package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.TwoFactorAttempt(ResultSuccess)
	m.TwoFactorAttempt(ResultFailure)
	m.TwoFactorAttempt(ResultFailure)
	m.PasskeyCeremony("authentication", ResultClone)
	m.ObserveHTTP("GET", "/passkeys", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.twoFactorAttempts.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passkeyCeremonies.WithLabelValues("authentication", ResultClone)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/passkeys", "200")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.TwoFactorAttempt(ResultRecovery)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `accountd_twofactor_attempts_total{result="recovery"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TwoFactorAttempt(ResultSuccess)
		m.PasskeyCeremony("registration", ResultSuccess)
		m.ObserveHTTP("GET", "/", 200, time.Second)
	})
	assert.Nil(t, m.Registry())
}
