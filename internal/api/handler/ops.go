// Package handler provides HTTP handlers for the notifier API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/qoomy/notifier/internal/api/models"
	"github.com/qoomy/notifier/internal/api/response"
	"github.com/qoomy/notifier/internal/provider/resilience"
)

// ReadinessCheck reports whether a local dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// OpsConfig holds configuration for the ops handler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Providers reports push gateway health. Optional.
	Providers *resilience.Registry

	// Checks are run by the readiness probe, keyed by subsystem name.
	Checks map[string]ReadinessCheck

	// CheckTimeout bounds each readiness check. Default: 2 seconds
	CheckTimeout time.Duration
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version      string
	buildTime    string
	providers    *resilience.Registry
	checks       map[string]ReadinessCheck
	checkTimeout time.Duration
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	timeout := cfg.CheckTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &OpsHandler{
		version:      cfg.Version,
		buildTime:    cfg.BuildTime,
		providers:    cfg.Providers,
		checks:       cfg.Checks,
		checkTimeout: timeout,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready.
// A failed subsystem check fails readiness; an open push gateway circuit only degrades it,
// since events keep being consumed and retried by the gateway breaker.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.subsystems(r.Context()),
		Providers:  h.providerStatuses(),
	}

	for _, s := range ready.Subsystems {
		if s.Status == models.HealthStatusFail {
			ready.Status = models.HealthStatusFail
		}
	}
	if ready.Status == models.HealthStatusOK {
		for _, p := range ready.Providers {
			if p.Status != models.HealthStatusOK {
				ready.Status = models.HealthStatusDegraded
			}
		}
	}

	status := http.StatusOK
	if ready.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, ready)
}

func (h *OpsHandler) subsystems(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
		err := h.checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.providers == nil {
		return []models.ProviderStatus{}
	}

	all := h.providers.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		ps := models.ProviderStatus{
			Provider:      p.Name,
			Status:        models.HealthStatusOK,
			CircuitState:  p.CircuitState.String(),
			LastSuccessAt: models.TimestampPtr(p.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(p.LastFailureAt),
		}
		switch {
		case p.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case p.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}
