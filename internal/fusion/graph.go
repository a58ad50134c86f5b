// Package fusion builds and maintains the weighted routing graph: the
// base road network fused with live congestion into per-edge travel
// time weights. It owns the only mutable shared state of the core, the
// published graph reference, and keeps it fresh under a staleness
// policy.
package fusion

import (
	"time"

	"github.com/trafigo/trafigo/internal/roadnet"
	"github.com/trafigo/trafigo/internal/traffic"
)

// Edge is a directed street stretch with its derived routing weight.
type Edge struct {
	From roadnet.NodeID
	To   roadnet.NodeID

	// LengthMeters is the physical length, copied from the base network.
	LengthMeters float64

	// MaxSpeedKmh is the resolved speed used for weighting. Zero marks
	// a malformed source edge; its travel time is infinite.
	MaxSpeedKmh float64

	// Congestion is the effective congestion level stamped on the edge.
	Congestion traffic.Level

	// TravelTime is the relative routing cost:
	// length * congestion / maxSpeed. Not literal seconds.
	TravelTime float64
}

// Graph is the weighted routing graph: base topology copied from the
// road network plus congestion and travel time on every edge.
// Immutable after Build; rebuilds create a fresh instance, so readers
// holding a *Graph never observe partial state.
type Graph struct {
	builtAt   time.Time
	nodes     map[roadnet.NodeID]roadnet.Node
	out       map[roadnet.NodeID][]Edge
	edgeCount int
}

// BuiltAt returns the build clock: when this graph was constructed.
func (g *Graph) BuiltAt() time.Time {
	return g.builtAt
}

// Node returns a node by id.
func (g *Graph) Node(id roadnet.NodeID) (roadnet.Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Edges returns the outgoing edges of a node. The returned slice is
// owned by the graph and must not be modified.
func (g *Graph) Edges(id roadnet.NodeID) []Edge {
	return g.out[id]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// ForEachEdge calls fn for every edge.
func (g *Graph) ForEachEdge(fn func(Edge)) {
	for _, edges := range g.out {
		for _, e := range edges {
			fn(e)
		}
	}
}

// NearestNode returns the node closest to the given coordinate.
func (g *Graph) NearestNode(lon, lat float64) (roadnet.NodeID, error) {
	if len(g.nodes) == 0 {
		return 0, roadnet.ErrNoNodes
	}

	var (
		best     roadnet.NodeID
		bestDist = -1.0
	)
	for id, node := range g.nodes {
		d := roadnet.Haversine(lat, lon, node.Lat, node.Lon)
		if bestDist < 0 || d < bestDist || (d == bestDist && id < best) {
			best = id
			bestDist = d
		}
	}
	return best, nil
}
