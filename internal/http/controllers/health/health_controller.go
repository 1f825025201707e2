// Package health contiene el controller para health checks.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	dto "github.com/dropDatabas3/accountd/internal/http/dto/health"
	svc "github.com/dropDatabas3/accountd/internal/http/services/health"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// HealthController maneja las rutas de health check.
type HealthController struct {
	service svc.HealthService
	version string
}

// NewHealthController crea un nuevo controller de health check.
func NewHealthController(service svc.HealthService, version string) *HealthController {
	return &HealthController{service: service, version: version}
}

// Healthz maneja GET /healthz: sólo confirma que el proceso responde.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{
		Status:    "ok",
		Version:   c.version,
		Timestamp: time.Now().UTC(),
	})
}

// Readyz maneja GET /readyz
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	response := c.service.Check(ctx)
	if response.Version != "" {
		w.Header().Set("X-Service-Version", response.Version)
	}

	// Status code según estado
	var statusCode int
	switch response.Status {
	case "unavailable":
		statusCode = http.StatusServiceUnavailable
	default: // "ready" o "degraded"
		statusCode = http.StatusOK
	}

	log.Debug("health check completed",
		logger.String("status", response.Status),
		logger.Count(len(response.Components)),
	)

	writeJSON(w, statusCode, response)
}

func writeJSON(w http.ResponseWriter, status int, v dto.HealthResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
