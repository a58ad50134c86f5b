package fusion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafigo/trafigo/internal/roadnet"
	"github.com/trafigo/trafigo/internal/traffic"
)

// ErrNoGraph is returned when no graph has ever been built and the
// congestion feed is unavailable.
var ErrNoGraph = errors.New("fusion: no graph available")

// DefaultStalenessThreshold is how old a graph may get before a query
// triggers a rebuild.
const DefaultStalenessThreshold = 5 * time.Minute

// CongestionSource supplies the live congestion batch for a rebuild.
type CongestionSource interface {
	FetchCongestion(ctx context.Context) ([]traffic.CongestionSample, *traffic.FeedStats, error)
}

// ServiceConfig holds configuration for the fusion service.
type ServiceConfig struct {
	// Base is the road network the weighted graph is derived from.
	Base *roadnet.Network

	// Segments is the street segment catalog, loaded once at startup.
	Segments []traffic.Segment

	// Congestion supplies live samples on every rebuild.
	Congestion CongestionSource

	// Builder fuses the inputs (default: NewBuilder with defaults).
	Builder *Builder

	// StalenessThreshold (default: DefaultStalenessThreshold).
	StalenessThreshold time.Duration

	// Logger for rebuild diagnostics.
	Logger zerolog.Logger

	// Now is the clock used for staleness decisions (default: time.Now).
	Now func() time.Time
}

// Service owns the published weighted graph and keeps it fresh. Reads
// go through an atomic pointer and never block; rebuilds are
// single-flight behind a mutex, so concurrent queries against a stale
// graph trigger one fetch and one build.
type Service struct {
	base       *roadnet.Network
	segments   []traffic.Segment
	congestion CongestionSource
	builder    *Builder
	threshold  time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	graph atomic.Pointer[Graph]

	rebuildMu sync.Mutex

	statusMu  sync.RWMutex
	lastBuild *BuildStats
	lastFeed  *traffic.FeedStats
	lastErr   error
}

// NewService creates a fusion service. No graph is built yet; call
// Rebuild to warm it or let the first query build it lazily.
func NewService(cfg ServiceConfig) *Service {
	builder := cfg.Builder
	if builder == nil {
		builder = NewBuilder(BuilderConfig{Logger: cfg.Logger})
	}

	threshold := cfg.StalenessThreshold
	if threshold == 0 {
		threshold = DefaultStalenessThreshold
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		base:       cfg.Base,
		segments:   cfg.Segments,
		congestion: cfg.Congestion,
		builder:    builder,
		threshold:  threshold,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Graph returns a graph fresh enough to route on. A fresh graph is
// returned without locking; a stale or missing one triggers a rebuild.
// If the rebuild fails and a previous graph exists, the stale graph is
// returned so routing degrades instead of failing.
func (s *Service) Graph(ctx context.Context) (*Graph, error) {
	if g := s.graph.Load(); g != nil && s.fresh(g) {
		return g, nil
	}

	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	// Another query may have rebuilt while we waited for the lock.
	if g := s.graph.Load(); g != nil && s.fresh(g) {
		return g, nil
	}

	g, err := s.rebuild(ctx)
	if err != nil {
		if prev := s.graph.Load(); prev != nil {
			s.logger.Warn().Err(err).
				Time("built_at", prev.BuiltAt()).
				Msg("rebuild failed, serving stale graph")
			return prev, nil
		}
		return nil, err
	}
	return g, nil
}

// Rebuild forces a rebuild regardless of freshness. Used by the warm
// build at startup, the background refresh worker and the admin
// endpoint.
func (s *Service) Rebuild(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	_, err := s.rebuild(ctx)
	return err
}

// rebuild fetches a congestion batch, builds a graph and publishes it.
// Callers must hold rebuildMu.
func (s *Service) rebuild(ctx context.Context) (*Graph, error) {
	samples, feedStats, err := s.congestion.FetchCongestion(ctx)
	if err != nil {
		s.recordError(err)
		if s.graph.Load() == nil {
			return nil, errors.Join(ErrNoGraph, err)
		}
		return nil, err
	}

	g, buildStats, err := s.builder.Build(ctx, s.base, s.segments, samples)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	g.builtAt = s.now()
	s.graph.Store(g)

	s.statusMu.Lock()
	s.lastBuild = buildStats
	s.lastFeed = feedStats
	s.lastErr = nil
	s.statusMu.Unlock()

	return g, nil
}

func (s *Service) fresh(g *Graph) bool {
	return s.now().Sub(g.BuiltAt()) <= s.threshold
}

func (s *Service) recordError(err error) {
	s.statusMu.Lock()
	s.lastErr = err
	s.statusMu.Unlock()
}

// Status describes the published graph for the ops surface.
type Status struct {
	HasGraph  bool               `json:"has_graph"`
	BuiltAt   time.Time          `json:"built_at,omitzero"`
	Age       time.Duration      `json:"age"`
	Stale     bool               `json:"stale"`
	Threshold time.Duration      `json:"threshold"`
	Nodes     int                `json:"nodes"`
	Edges     int                `json:"edges"`
	LastBuild *BuildStats        `json:"last_build,omitempty"`
	LastFeed  *traffic.FeedStats `json:"last_feed,omitempty"`
	LastError string             `json:"last_error,omitempty"`
}

// Status reports the current graph state without blocking on rebuilds.
func (s *Service) Status() Status {
	st := Status{Threshold: s.threshold}

	if g := s.graph.Load(); g != nil {
		st.HasGraph = true
		st.BuiltAt = g.BuiltAt()
		st.Age = s.now().Sub(g.BuiltAt())
		st.Stale = !s.fresh(g)
		st.Nodes = g.NodeCount()
		st.Edges = g.EdgeCount()
	}

	s.statusMu.RLock()
	st.LastBuild = s.lastBuild
	st.LastFeed = s.lastFeed
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.statusMu.RUnlock()

	return st
}
