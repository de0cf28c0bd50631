// Package handler provides HTTP handlers for the plan API.
package handler

import (
	"net/http"
	"time"

	"github.com/runcoach/runcoach/internal/api/models"
	"github.com/runcoach/runcoach/internal/api/response"
	"github.com/runcoach/runcoach/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. A nil registry reports no providers.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry) *OpsHandler {
	if registry == nil {
		registry = resilience.NewRegistry()
	}
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is not ready while
// any provider circuit is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}
	status := http.StatusOK

	if !h.registry.Ready() {
		health.Status = models.HealthStatusFail
		unavailable := []string{}
		for _, p := range h.registry.Snapshot() {
			if !p.Available() {
				unavailable = append(unavailable, p.Name)
			}
		}
		health.Details = map[string]any{"unavailableProviders": unavailable}
		status = http.StatusServiceUnavailable
	}

	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider health from the circuit breakers.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()

	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.now()),
		Version:   h.version,
		Providers: make([]models.ProviderStatus, 0, len(snapshot)),
	}

	for _, p := range snapshot {
		ps := models.ProviderStatus{
			Provider:      p.Name,
			Status:        providerHealthStatus(p.Status()),
			CircuitState:  p.State.String(),
			Requests:      p.Counts.Requests,
			Failures:      p.Counts.TotalFailures,
			LastSuccessAt: models.TimestampPtr(p.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(p.LastFailureAt),
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		status.Providers = append(status.Providers, ps)

		// The API stays up when a provider fails; it only degrades.
		if ps.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerHealthStatus(s string) models.HealthStatus {
	switch s {
	case resilience.StatusUnavailable:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
