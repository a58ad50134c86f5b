package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafigo/trafigo/internal/api/middleware"
	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/planner"
)

// RebuildJob rebuilds the routing graph and verifies the result.
type RebuildJob struct {
	config RebuildConfig
	logger zerolog.Logger

	graphs *fusion.Service

	// Planner for post-rebuild probes (optional, nil skips probing).
	planner *planner.Service

	// Metrics
	metrics         *RebuildMetrics
	providerMetrics *middleware.ProviderMetrics
}

// RebuildMetrics tracks rebuild job statistics.
type RebuildMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRebuilds      int64
	SuccessfulRebuilds int64
	FailedRebuilds     int64
	ProbesPlanned      int64
	ProbesFailed       int64

	// Timings
	LastRebuildAt       time.Time
	LastRebuildDuration time.Duration
	TotalDuration       time.Duration
}

// RebuildJobConfig holds configuration for creating a RebuildJob.
type RebuildJobConfig struct {
	Config          RebuildConfig
	Logger          zerolog.Logger
	Graphs          *fusion.Service
	Planner         *planner.Service
	ProviderMetrics *middleware.ProviderMetrics
}

// NewRebuildJob creates a new rebuild job processor.
func NewRebuildJob(cfg RebuildJobConfig) *RebuildJob {
	return &RebuildJob{
		config:          cfg.Config.withDefaults(),
		logger:          cfg.Logger,
		graphs:          cfg.Graphs,
		planner:         cfg.Planner,
		metrics:         &RebuildMetrics{},
		providerMetrics: cfg.ProviderMetrics,
	}
}

// RebuildResult contains the result of one rebuild run.
type RebuildResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Error is set when the rebuild failed.
	Error string

	// Graph is the published graph state after the run.
	Graph fusion.Status

	// ProbesPlanned and ProbesFailed count post-rebuild probe routes.
	ProbesPlanned int
	ProbesFailed  int
}

// Run rebuilds the graph once and probes the result.
func (j *RebuildJob) Run(ctx context.Context) *RebuildResult {
	startTime := time.Now()
	result := &RebuildResult{StartTime: startTime}

	j.logger.Info().Msg("starting graph rebuild job")

	rebuildCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	err := j.graphs.Rebuild(rebuildCtx)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	result.Graph = j.graphs.Status()

	if j.providerMetrics != nil {
		j.providerMetrics.RecordRequest("fusion", "rebuild", result.Duration, err)
	}

	if err != nil {
		result.Error = err.Error()
		j.updateMetrics(result)

		j.logger.Error().Err(err).
			Dur("duration", result.Duration).
			Bool("stale_graph_serving", result.Graph.HasGraph).
			Msg("graph rebuild failed")
		return result
	}

	if j.planner != nil {
		result.ProbesPlanned, result.ProbesFailed = j.runProbes(rebuildCtx)
	}

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("nodes", result.Graph.Nodes).
		Int("edges", result.Graph.Edges).
		Int("probes_planned", result.ProbesPlanned).
		Int("probes_failed", result.ProbesFailed).
		Msg("graph rebuild job completed")

	return result
}

// runProbes plans each configured probe route on the fresh graph.
func (j *RebuildJob) runProbes(ctx context.Context) (planned, failed int) {
	for _, probe := range j.config.Probes {
		planned++
		_, err := j.planner.Plan(ctx,
			planner.Coordinate{Lon: probe.Origin.Lon, Lat: probe.Origin.Lat},
			planner.Coordinate{Lon: probe.Destination.Lon, Lat: probe.Destination.Lat})
		if err != nil {
			failed++
			j.logger.Warn().Err(err).
				Str("probe", probe.Name).
				Msg("probe route failed on fresh graph")
		}
	}
	return planned, failed
}

// HealthCheck verifies the published graph routes at all. It does not
// rebuild; a missing graph or an unroutable probe is a failure.
func (j *RebuildJob) HealthCheck(ctx context.Context) error {
	st := j.graphs.Status()
	if !st.HasGraph {
		return fmt.Errorf("health check failed: no graph published")
	}

	if j.planner == nil || len(j.config.Probes) == 0 {
		return nil
	}

	probe := j.config.Probes[0]
	_, err := j.planner.Plan(ctx,
		planner.Coordinate{Lon: probe.Origin.Lon, Lat: probe.Origin.Lat},
		planner.Coordinate{Lon: probe.Destination.Lon, Lat: probe.Destination.Lat})
	if err != nil {
		return fmt.Errorf("health check probe %s: %w", probe.Name, err)
	}

	j.logger.Debug().Str("probe", probe.Name).Msg("health check passed")
	return nil
}

func (j *RebuildJob) updateMetrics(result *RebuildResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRebuilds++
	if result.Error == "" {
		j.metrics.SuccessfulRebuilds++
	} else {
		j.metrics.FailedRebuilds++
	}
	j.metrics.ProbesPlanned += int64(result.ProbesPlanned)
	j.metrics.ProbesFailed += int64(result.ProbesFailed)
	j.metrics.LastRebuildAt = result.EndTime
	j.metrics.LastRebuildDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RebuildJob) GetMetrics() RebuildMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RebuildMetrics{
		TotalRebuilds:       j.metrics.TotalRebuilds,
		SuccessfulRebuilds:  j.metrics.SuccessfulRebuilds,
		FailedRebuilds:      j.metrics.FailedRebuilds,
		ProbesPlanned:       j.metrics.ProbesPlanned,
		ProbesFailed:        j.metrics.ProbesFailed,
		LastRebuildAt:       j.metrics.LastRebuildAt,
		LastRebuildDuration: j.metrics.LastRebuildDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RebuildJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_rebuilds":        m.TotalRebuilds,
		"successful_rebuilds":   m.SuccessfulRebuilds,
		"failed_rebuilds":       m.FailedRebuilds,
		"probes_planned":        m.ProbesPlanned,
		"probes_failed":         m.ProbesFailed,
		"last_rebuild_at":       m.LastRebuildAt,
		"last_rebuild_duration": m.LastRebuildDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
