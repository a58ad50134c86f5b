// Package planner answers routing queries against the fused graph:
// snap origin and destination to the network, run a travel-time
// shortest path, and return the route with per-waypoint congestion.
package planner

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/roadnet"
	"github.com/trafigo/trafigo/internal/traffic"
)

// ErrNoRouteFound is returned when destination is unreachable from
// origin on the current graph.
var ErrNoRouteFound = errors.New("planner: no route found")

// Coordinate is a lon/lat pair.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Waypoint is one node along a planned route. Congestion is the level
// of the edge arriving at the waypoint; the first waypoint has none.
type Waypoint struct {
	NodeID     roadnet.NodeID `json:"node_id"`
	Lon        float64        `json:"lon"`
	Lat        float64        `json:"lat"`
	Congestion traffic.Level  `json:"congestion"`
}

// Route is a planned route across the fused graph.
type Route struct {
	Waypoints []Waypoint `json:"waypoints"`

	// TravelTime is the summed edge weight, a relative cost rather
	// than literal seconds.
	TravelTime float64 `json:"travel_time"`

	// DistanceMeters is the summed physical edge length.
	DistanceMeters float64 `json:"distance_meters"`

	// GraphBuiltAt is the build clock of the graph that answered.
	GraphBuiltAt time.Time `json:"graph_built_at"`
}

// GraphSource yields a routing graph fresh enough to plan on.
type GraphSource interface {
	Graph(ctx context.Context) (*fusion.Graph, error)
}

// ServiceConfig holds configuration for the planner.
type ServiceConfig struct {
	Graphs GraphSource
	Logger zerolog.Logger
}

// Service plans routes.
type Service struct {
	graphs GraphSource
	logger zerolog.Logger
}

// NewService creates a planner service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		graphs: cfg.Graphs,
		logger: cfg.Logger,
	}
}

// Plan computes the minimum travel-time route between two coordinates.
// Both endpoints snap to their nearest graph node; impassable edges
// (infinite travel time) are never traversed.
func (s *Service) Plan(ctx context.Context, origin, destination Coordinate) (*Route, error) {
	g, err := s.graphs.Graph(ctx)
	if err != nil {
		return nil, err
	}

	from, err := g.NearestNode(origin.Lon, origin.Lat)
	if err != nil {
		return nil, err
	}
	to, err := g.NearestNode(destination.Lon, destination.Lat)
	if err != nil {
		return nil, err
	}

	route, err := shortestRoute(g, from, to)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int64("from", int64(from)).
		Int64("to", int64(to)).
		Int("waypoints", len(route.Waypoints)).
		Float64("travel_time", route.TravelTime).
		Msg("route planned")

	return route, nil
}

// shortestRoute runs Dijkstra over travel time. Ties break on lower
// node id so results are deterministic.
func shortestRoute(g *fusion.Graph, from, to roadnet.NodeID) (*Route, error) {
	if _, ok := g.Node(from); !ok {
		return nil, roadnet.ErrUnknownNode
	}
	if _, ok := g.Node(to); !ok {
		return nil, roadnet.ErrUnknownNode
	}

	dist := map[roadnet.NodeID]float64{from: 0}
	prev := make(map[roadnet.NodeID]fusion.Edge)
	visited := make(map[roadnet.NodeID]bool)

	pq := &routeQueue{{node: from, cost: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*routeItem)
		if visited[item.node] {
			continue
		}
		visited[item.node] = true
		if item.node == to {
			break
		}

		for _, e := range g.Edges(item.node) {
			if math.IsInf(e.TravelTime, 1) {
				continue
			}
			next := item.cost + e.TravelTime
			if d, ok := dist[e.To]; !ok || next < d {
				dist[e.To] = next
				prev[e.To] = e
				heap.Push(pq, &routeItem{node: e.To, cost: next})
			}
		}
	}

	if !visited[to] {
		return nil, ErrNoRouteFound
	}

	return assembleRoute(g, from, to, dist[to], prev), nil
}

func assembleRoute(g *fusion.Graph, from, to roadnet.NodeID, cost float64, prev map[roadnet.NodeID]fusion.Edge) *Route {
	var (
		edges    []fusion.Edge
		distance float64
	)
	for at := to; at != from; {
		e := prev[at]
		edges = append(edges, e)
		distance += e.LengthMeters
		at = e.From
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	waypoints := make([]Waypoint, 0, len(edges)+1)
	start, _ := g.Node(from)
	waypoints = append(waypoints, Waypoint{NodeID: from, Lon: start.Lon, Lat: start.Lat})
	for _, e := range edges {
		n, _ := g.Node(e.To)
		waypoints = append(waypoints, Waypoint{
			NodeID:     e.To,
			Lon:        n.Lon,
			Lat:        n.Lat,
			Congestion: e.Congestion,
		})
	}

	return &Route{
		Waypoints:      waypoints,
		TravelTime:     cost,
		DistanceMeters: distance,
		GraphBuiltAt:   g.BuiltAt(),
	}
}

type routeItem struct {
	node roadnet.NodeID
	cost float64
}

type routeQueue []*routeItem

func (q routeQueue) Len() int { return len(q) }

func (q routeQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].node < q[j].node
}

func (q routeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *routeQueue) Push(x any) { *q = append(*q, x.(*routeItem)) }

func (q *routeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
