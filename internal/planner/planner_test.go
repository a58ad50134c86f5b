package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/planner"
	"github.com/trafigo/trafigo/internal/roadnet"
	"github.com/trafigo/trafigo/internal/traffic"
)

type staticGraphs struct {
	graph *fusion.Graph
	err   error
}

func (s *staticGraphs) Graph(_ context.Context) (*fusion.Graph, error) {
	return s.graph, s.err
}

// plannerBase has a short direct link and a longer detour:
//
//	1 --100m--> 2 --100m--> 3
//	1 --150m------------->  3
func plannerBase() *roadnet.Network {
	n := roadnet.NewNetwork("testville")
	n.AddNode(roadnet.Node{ID: 1, Lon: 2.150, Lat: 41.380})
	n.AddNode(roadnet.Node{ID: 2, Lon: 2.151, Lat: 41.381})
	n.AddNode(roadnet.Node{ID: 3, Lon: 2.152, Lat: 41.382})

	mustAdd := func(e roadnet.Edge) {
		if err := n.AddEdge(e); err != nil {
			panic(err)
		}
	}
	mustAdd(roadnet.Edge{From: 1, To: 2, LengthMeters: 100})
	mustAdd(roadnet.Edge{From: 2, To: 3, LengthMeters: 100})
	mustAdd(roadnet.Edge{From: 1, To: 3, LengthMeters: 150})
	return n
}

func buildGraph(t *testing.T, base *roadnet.Network, segments []traffic.Segment, samples []traffic.CongestionSample) *fusion.Graph {
	t.Helper()
	g, _, err := fusion.NewBuilder(fusion.BuilderConfig{}).Build(context.Background(), base, segments, samples)
	require.NoError(t, err)
	return g
}

func directSegment(base *roadnet.Network) []traffic.Segment {
	a, _ := base.Node(1)
	c, _ := base.Node(3)
	return []traffic.Segment{{
		ID:       "S1",
		Name:     "Gran Via",
		Geometry: []traffic.Point{{Lon: a.Lon, Lat: a.Lat}, {Lon: c.Lon, Lat: c.Lat}},
	}}
}

func TestService_Plan_PrefersDirectWhenFluid(t *testing.T) {
	base := plannerBase()
	g := buildGraph(t, base, nil, nil)

	svc := planner.NewService(planner.ServiceConfig{Graphs: &staticGraphs{graph: g}})

	route, err := svc.Plan(context.Background(),
		planner.Coordinate{Lon: 2.150, Lat: 41.380},
		planner.Coordinate{Lon: 2.152, Lat: 41.382})
	require.NoError(t, err)

	// Direct 150m at default congestion beats the 200m detour.
	require.Len(t, route.Waypoints, 2)
	assert.Equal(t, roadnet.NodeID(1), route.Waypoints[0].NodeID)
	assert.Equal(t, roadnet.NodeID(3), route.Waypoints[1].NodeID)
	assert.InDelta(t, 150.0*2/30, route.TravelTime, 1e-9)
	assert.InDelta(t, 150.0, route.DistanceMeters, 1e-9)
}

func TestService_Plan_DetoursAroundCongestion(t *testing.T) {
	base := plannerBase()

	// The direct link is blocked-level congested; the detour stays fluid.
	g := buildGraph(t, base, directSegment(base),
		[]traffic.CongestionSample{{SegmentID: "S1", Usual: 2, Actual: 6}})

	svc := planner.NewService(planner.ServiceConfig{Graphs: &staticGraphs{graph: g}})

	route, err := svc.Plan(context.Background(),
		planner.Coordinate{Lon: 2.150, Lat: 41.380},
		planner.Coordinate{Lon: 2.152, Lat: 41.382})
	require.NoError(t, err)

	require.Len(t, route.Waypoints, 3)
	assert.Equal(t, roadnet.NodeID(2), route.Waypoints[1].NodeID)
	assert.InDelta(t, 200.0*2/30, route.TravelTime, 1e-9)

	// Waypoint congestion reflects the incoming edge.
	assert.Equal(t, traffic.LevelNoData, route.Waypoints[0].Congestion)
	assert.Equal(t, traffic.LevelFluid, route.Waypoints[1].Congestion)
	assert.Equal(t, traffic.LevelFluid, route.Waypoints[2].Congestion)
}

func TestService_Plan_SkipsImpassableEdges(t *testing.T) {
	n := roadnet.NewNetwork("testville")
	n.AddNode(roadnet.Node{ID: 1, Lon: 2.150, Lat: 41.380})
	n.AddNode(roadnet.Node{ID: 2, Lon: 2.151, Lat: 41.381})
	require.NoError(t, n.AddEdge(roadnet.Edge{
		From: 1, To: 2, LengthMeters: 100, MaxSpeeds: []float64{0},
	}))

	g := buildGraph(t, n, nil, nil)
	svc := planner.NewService(planner.ServiceConfig{Graphs: &staticGraphs{graph: g}})

	_, err := svc.Plan(context.Background(),
		planner.Coordinate{Lon: 2.150, Lat: 41.380},
		planner.Coordinate{Lon: 2.151, Lat: 41.381})
	require.Error(t, err)
	assert.ErrorIs(t, err, planner.ErrNoRouteFound)
}

func TestService_Plan_SameSnappedNode(t *testing.T) {
	base := plannerBase()
	g := buildGraph(t, base, nil, nil)
	svc := planner.NewService(planner.ServiceConfig{Graphs: &staticGraphs{graph: g}})

	// Both coordinates snap to node 1.
	route, err := svc.Plan(context.Background(),
		planner.Coordinate{Lon: 2.150, Lat: 41.380},
		planner.Coordinate{Lon: 2.1501, Lat: 41.3801})
	require.NoError(t, err)

	require.Len(t, route.Waypoints, 1)
	assert.Zero(t, route.TravelTime)
	assert.Zero(t, route.DistanceMeters)
}

func TestService_Plan_GraphUnavailable(t *testing.T) {
	svc := planner.NewService(planner.ServiceConfig{
		Graphs: &staticGraphs{err: fusion.ErrNoGraph},
	})

	_, err := svc.Plan(context.Background(),
		planner.Coordinate{Lon: 2.150, Lat: 41.380},
		planner.Coordinate{Lon: 2.152, Lat: 41.382})
	require.Error(t, err)
	assert.ErrorIs(t, err, fusion.ErrNoGraph)
}
