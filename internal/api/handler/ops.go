package handler

import (
	"net/http"
	"time"

	"github.com/trafigo/trafigo/internal/api/models"
	"github.com/trafigo/trafigo/internal/api/response"
	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	graphs    *fusion.Service
	providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, graphs *fusion.Service, providers *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		graphs:    graphs,
		providers: providers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The
// service is ready once a routing graph has been published.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	st := h.graphs.Status()

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	code := http.StatusOK
	if !st.HasGraph {
		health.Status = models.HealthStatusFail
		health.Details = map[string]interface{}{"reason": "no routing graph published"}
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - graph and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	st := h.graphs.Status()

	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Graph:  graphStatus(st),
	}

	if !st.HasGraph {
		status.Status = models.HealthStatusFail
	} else if st.Stale || st.LastError != "" {
		status.Status = models.HealthStatusDegraded
	}

	status.Subsystems = []models.SubsystemStatus{
		{Name: "fusion", Status: status.Status},
	}

	if h.providers != nil {
		for _, ph := range h.providers.AllHealth() {
			ps := models.ProviderStatus{
				Provider:     ph.Name,
				Status:       models.HealthStatusOK,
				CircuitState: ph.CircuitState.String(),
			}
			if !ph.Healthy() {
				ps.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

// RebuildGraph handles POST /v1/admin/graph:rebuild - forced rebuild.
func (h *OpsHandler) RebuildGraph(w http.ResponseWriter, r *http.Request) {
	if err := h.graphs.Rebuild(r.Context()); err != nil {
		st := h.graphs.Status()
		resp := models.RebuildResponse{
			Status:  models.HealthStatusFail,
			Graph:   graphStatus(st),
			Message: err.Error(),
		}
		if st.HasGraph {
			// A previous graph still serves traffic.
			resp.Status = models.HealthStatusDegraded
		}
		response.JSON(w, r, http.StatusBadGateway, resp)
		return
	}

	response.JSON(w, r, http.StatusOK, models.RebuildResponse{
		Status: models.HealthStatusOK,
		Graph:  graphStatus(h.graphs.Status()),
	})
}

func graphStatus(st fusion.Status) models.GraphStatus {
	gs := models.GraphStatus{
		Available: st.HasGraph,
		AgeSecs:   st.Age.Seconds(),
		Stale:     st.Stale,
		Nodes:     st.Nodes,
		Edges:     st.Edges,
		LastError: st.LastError,
	}
	if st.HasGraph {
		builtAt := models.Timestamp(st.BuiltAt)
		gs.BuiltAt = &builtAt
	}
	return gs
}
