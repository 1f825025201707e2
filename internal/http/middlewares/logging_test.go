package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

func TestLogging_AccessLineCarriesInnerFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	r := chi.NewRouter()
	r.Use(WithRequestID(), WithLogging())
	r.Get("/passkeys/{id}", func(w http.ResponseWriter, r *http.Request) {
		logger.AddFields(r.Context(), logger.UserID("u-1"))
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/passkeys/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "request completed", entries[0].Message)
	assert.Equal(t, "u-1", first["user_id"])
	assert.Equal(t, "/passkeys/{id}", first["route"])
	assert.EqualValues(t, http.StatusNoContent, first["status"])
	assert.NotEmpty(t, first["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "request rejected", entries[1].Message)
}
