// Package health contiene el service para health checks.
package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	dto "github.com/dropDatabas3/accountd/internal/http/dto/health"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	Version      string
	StoreCheck   func(ctx context.Context) error // crítico
	SessionCheck func(ctx context.Context) error // crítico
	RedisCheck   func(ctx context.Context) error // cache y rate limit, no crítico
	Timeout      time.Duration
	Now          func() time.Time
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &healthService{deps: deps}
}

const componentHealth = "health"

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentHealth),
		logger.Op("Check"),
	)

	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	response := dto.HealthResponse{
		Version:    s.deps.Version,
		Components: make(map[string]dto.HealthStatus),
		Timestamp:  s.deps.Now().UTC(),
	}

	critical := s.probe(ctx, log, response.Components, "store", s.deps.StoreCheck)
	if s.probe(ctx, log, response.Components, "sessions", s.deps.SessionCheck) {
		critical = true
	}
	degraded := s.probe(ctx, log, response.Components, "redis", s.deps.RedisCheck)

	switch {
	case critical:
		response.Status = "unavailable"
	case degraded:
		response.Status = "degraded"
	default:
		response.Status = "ready"
	}
	return response
}

// probe registra el resultado de check en components y devuelve true si falló.
func (s *healthService) probe(ctx context.Context, log *zap.Logger, components map[string]dto.HealthStatus, name string, check func(context.Context) error) bool {
	if check == nil {
		components[name] = dto.HealthStatus{Status: "disabled"}
		return false
	}
	if err := check(ctx); err != nil {
		components[name] = dto.HealthStatus{Status: "error", Message: fmt.Sprintf("unavailable: %v", err)}
		log.Error(name+" unavailable", logger.Err(err))
		return true
	}
	components[name] = dto.HealthStatus{Status: "ok"}
	return false
}
