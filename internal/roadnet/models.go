// Package roadnet models the base road network of a city: the
// structural graph of drivable streets (topology, geometry, posted
// speeds) prior to any congestion fusion. The network is fetched once
// from an external provider and shared read-only across graph rebuilds.
package roadnet

import (
	"errors"
	"time"
)

// Sentinel errors for base network operations.
var (
	// ErrNetworkUnavailable indicates the base network provider could not deliver a network.
	ErrNetworkUnavailable = errors.New("base network unavailable")
	// ErrNetworkNotFound indicates no cached network exists for the place.
	ErrNetworkNotFound = errors.New("no cached network for place")
	// ErrNoNodes indicates a lookup against a network without nodes.
	ErrNoNodes = errors.New("network has no nodes")
	// ErrUnknownNode indicates an edge or query referenced a node that is not part of the network.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNoPath indicates the two nodes are not connected.
	ErrNoPath = errors.New("no path between nodes")
)

// NodeID identifies a node in the base network.
type NodeID int64

// Node is a road intersection or shape point.
type Node struct {
	ID  NodeID
	Lon float64
	Lat float64
}

// Edge is a directed street stretch between two nodes.
type Edge struct {
	From NodeID
	To   NodeID

	// LengthMeters is the physical length of the stretch.
	LengthMeters float64

	// MaxSpeeds holds the posted speed(s) in km/h. Empty when the
	// source network carries none; two entries when it models both a
	// free-flow and a congested speed.
	MaxSpeeds []float64

	// Bearing is the compass bearing from the start node in degrees.
	Bearing float64
}

// Network is the structural road graph for one place.
// Construction is single-threaded; once handed out it is read-only.
type Network struct {
	Place     string
	FetchedAt time.Time

	nodes     map[NodeID]Node
	out       map[NodeID][]Edge
	edgeCount int
}

// NewNetwork creates an empty network for a place.
func NewNetwork(place string) *Network {
	return &Network{
		Place: place,
		nodes: make(map[NodeID]Node),
		out:   make(map[NodeID][]Edge),
	}
}

// AddNode inserts or replaces a node.
func (n *Network) AddNode(node Node) {
	n.nodes[node.ID] = node
}

// AddEdge inserts a directed edge. Both endpoints must already exist.
func (n *Network) AddEdge(edge Edge) error {
	if _, ok := n.nodes[edge.From]; !ok {
		return ErrUnknownNode
	}
	if _, ok := n.nodes[edge.To]; !ok {
		return ErrUnknownNode
	}
	n.out[edge.From] = append(n.out[edge.From], edge)
	n.edgeCount++
	return nil
}

// Node returns the node with the given id.
func (n *Network) Node(id NodeID) (Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

// Edges returns the outgoing edges of a node. The returned slice is
// owned by the network and must not be modified.
func (n *Network) Edges(id NodeID) []Edge {
	return n.out[id]
}

// NodeCount returns the number of nodes.
func (n *Network) NodeCount() int {
	return len(n.nodes)
}

// EdgeCount returns the number of directed edges.
func (n *Network) EdgeCount() int {
	return n.edgeCount
}

// ForEachNode calls fn for every node.
func (n *Network) ForEachNode(fn func(Node)) {
	for _, node := range n.nodes {
		fn(node)
	}
}

// ForEachEdge calls fn for every directed edge.
func (n *Network) ForEachEdge(fn func(Edge)) {
	for _, edges := range n.out {
		for _, e := range edges {
			fn(e)
		}
	}
}

// NearestNode returns the node closest to the given coordinate.
func (n *Network) NearestNode(lon, lat float64) (NodeID, error) {
	if len(n.nodes) == 0 {
		return 0, ErrNoNodes
	}

	var (
		best     NodeID
		bestDist = -1.0
	)
	for id, node := range n.nodes {
		d := Haversine(lat, lon, node.Lat, node.Lon)
		if bestDist < 0 || d < bestDist || (d == bestDist && id < best) {
			best = id
			bestDist = d
		}
	}
	return best, nil
}
