// Package health contiene los DTOs de /healthz y /readyz.
package health

import "time"

// HealthStatus es el estado de un componente.
type HealthStatus struct {
	Status  string `json:"status"` // "ok" | "error" | "disabled"
	Message string `json:"message,omitempty"`
}

// HealthResponse es el cuerpo de /readyz (y de /healthz, sin componentes).
type HealthResponse struct {
	Status     string                  `json:"status"` // "ready" | "degraded" | "unavailable"
	Version    string                  `json:"version,omitempty"`
	Components map[string]HealthStatus `json:"components,omitempty"`
	Timestamp  time.Time               `json:"timestamp"`
}
