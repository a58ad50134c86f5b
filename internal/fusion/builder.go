package fusion

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafigo/trafigo/internal/roadnet"
	"github.com/trafigo/trafigo/internal/traffic"
)

// BuilderConfig holds configuration for the fusion builder.
type BuilderConfig struct {
	// DefaultCongestion is stamped on edges no feed segment covers
	// (default: traffic.DefaultLevel, fluid).
	DefaultCongestion traffic.Level

	// DefaultMaxSpeedKmh is used for edges without a maxspeed value
	// (default: 30, the common urban limit).
	DefaultMaxSpeedKmh float64

	// Logger for build diagnostics.
	Logger zerolog.Logger
}

// Builder fuses a base road network, the segment catalog and a batch
// of congestion samples into a weighted Graph.
type Builder struct {
	defaultCongestion traffic.Level
	defaultMaxSpeed   float64
	logger            zerolog.Logger
}

// NewBuilder creates a builder with defaults filled in.
func NewBuilder(cfg BuilderConfig) *Builder {
	defaultCongestion := cfg.DefaultCongestion
	if defaultCongestion == traffic.LevelNoData {
		defaultCongestion = traffic.DefaultLevel
	}

	defaultMaxSpeed := cfg.DefaultMaxSpeedKmh
	if defaultMaxSpeed == 0 {
		defaultMaxSpeed = 30
	}

	return &Builder{
		defaultCongestion: defaultCongestion,
		defaultMaxSpeed:   defaultMaxSpeed,
		logger:            cfg.Logger,
	}
}

// BuildStats summarizes a build for logging and the ops status surface.
type BuildStats struct {
	Segments        int           `json:"segments"`
	SampledSegments int           `json:"sampled_segments"`
	MatchedTracks   int           `json:"matched_tracks"`
	UnmatchedTracks int           `json:"unmatched_tracks"`
	StampedEdges    int           `json:"stamped_edges"`
	DefaultedEdges  int           `json:"defaulted_edges"`
	ImpassableEdges int           `json:"impassable_edges"`
	Duration        time.Duration `json:"duration"`
}

type edgeKey struct {
	from roadnet.NodeID
	to   roadnet.NodeID
}

// Build produces a new weighted graph. The base network is read-only
// input; the result shares no mutable state with it, so the caller can
// publish the graph atomically.
//
// Segments are processed in catalog order and later readings overwrite
// earlier ones on shared edges, which keeps the result deterministic
// for a given input.
func (b *Builder) Build(ctx context.Context, base *roadnet.Network, segments []traffic.Segment, samples []traffic.CongestionSample) (*Graph, *BuildStats, error) {
	start := time.Now()
	stats := &BuildStats{Segments: len(segments)}

	byID := make(map[string]traffic.CongestionSample, len(samples))
	for _, s := range samples {
		byID[s.SegmentID] = s
	}

	stamped := make(map[edgeKey]traffic.Level)

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		sample, ok := byID[seg.ID]
		if !ok {
			continue
		}
		stats.SampledSegments++

		level := traffic.Reconcile(sample.Usual, sample.Actual)
		b.stampSegment(base, seg, level, stamped, stats)
	}
	stats.StampedEdges = len(stamped)

	graph := &Graph{
		nodes: make(map[roadnet.NodeID]roadnet.Node, base.NodeCount()),
		out:   make(map[roadnet.NodeID][]Edge, base.NodeCount()),
	}
	base.ForEachNode(func(n roadnet.Node) {
		graph.nodes[n.ID] = n
	})

	base.ForEachEdge(func(e roadnet.Edge) {
		level, ok := stamped[edgeKey{e.From, e.To}]
		if !ok {
			level = b.defaultCongestion
			stats.DefaultedEdges++
		}

		speed := b.pickSpeed(e.MaxSpeeds, level)

		travelTime := math.Inf(1)
		if speed > 0 {
			travelTime = e.LengthMeters * float64(level) / speed
		} else {
			stats.ImpassableEdges++
		}

		graph.out[e.From] = append(graph.out[e.From], Edge{
			From:         e.From,
			To:           e.To,
			LengthMeters: e.LengthMeters,
			MaxSpeedKmh:  speed,
			Congestion:   level,
			TravelTime:   travelTime,
		})
		graph.edgeCount++
	})

	stats.Duration = time.Since(start)
	b.logger.Info().
		Int("segments", stats.Segments).
		Int("sampled", stats.SampledSegments).
		Int("stamped_edges", stats.StampedEdges).
		Int("defaulted_edges", stats.DefaultedEdges).
		Int("impassable_edges", stats.ImpassableEdges).
		Dur("duration", stats.Duration).
		Msg("fusion graph built")

	return graph, stats, nil
}

// stampSegment projects one segment's congestion onto the base network.
// The segment geometry is walked in consecutive point pairs; each pair
// is snapped to its nearest nodes and the shortest path between them
// carries the level.
func (b *Builder) stampSegment(base *roadnet.Network, seg traffic.Segment, level traffic.Level, stamped map[edgeKey]traffic.Level, stats *BuildStats) {
	points := seg.Geometry
	for i := 0; i+1 < len(points); i += 2 {
		from, err := base.NearestNode(points[i].Lon, points[i].Lat)
		if err != nil {
			stats.UnmatchedTracks++
			continue
		}
		to, err := base.NearestNode(points[i+1].Lon, points[i+1].Lat)
		if err != nil {
			stats.UnmatchedTracks++
			continue
		}

		path, err := base.ShortestPath(from, to)
		if err != nil {
			stats.UnmatchedTracks++
			b.logger.Debug().
				Str("segment_id", seg.ID).
				Int64("from", int64(from)).
				Int64("to", int64(to)).
				Msg("no path for segment track")
			continue
		}

		stats.MatchedTracks++
		for j := 0; j+1 < len(path); j++ {
			stamped[edgeKey{path[j], path[j+1]}] = level
		}
	}
}

// pickSpeed resolves the speed an edge is weighted with. Edges tagged
// with a free-flow and a congested speed use the free-flow value while
// traffic is fluid or better.
func (b *Builder) pickSpeed(speeds []float64, level traffic.Level) float64 {
	switch {
	case len(speeds) == 0:
		return b.defaultMaxSpeed
	case len(speeds) >= 2:
		if level <= traffic.LevelFluid {
			return speeds[0]
		}
		return speeds[1]
	default:
		return speeds[0]
	}
}
