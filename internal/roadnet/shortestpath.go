package roadnet

import "container/heap"

// ShortestPath computes the length-weighted shortest path between two
// nodes and returns the ordered node sequence including both
// endpoints. This is a structural query: it only looks at edge
// lengths, never at any derived travel-time attributes.
func (n *Network) ShortestPath(from, to NodeID) ([]NodeID, error) {
	if _, ok := n.nodes[from]; !ok {
		return nil, ErrUnknownNode
	}
	if _, ok := n.nodes[to]; !ok {
		return nil, ErrUnknownNode
	}
	if from == to {
		return []NodeID{from}, nil
	}

	dist := map[NodeID]float64{from: 0}
	prev := make(map[NodeID]NodeID)
	visited := make(map[NodeID]bool)

	pq := &nodeQueue{{id: from, priority: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*nodeItem)
		if visited[item.id] {
			continue
		}
		visited[item.id] = true

		if item.id == to {
			return assemblePath(prev, from, to), nil
		}

		for _, edge := range n.out[item.id] {
			if visited[edge.To] {
				continue
			}
			candidate := dist[item.id] + edge.LengthMeters
			if current, seen := dist[edge.To]; !seen || candidate < current {
				dist[edge.To] = candidate
				prev[edge.To] = item.id
				heap.Push(pq, &nodeItem{id: edge.To, priority: candidate})
			}
		}
	}

	return nil, ErrNoPath
}

func assemblePath(prev map[NodeID]NodeID, from, to NodeID) []NodeID {
	var reversed []NodeID
	for at := to; ; {
		reversed = append(reversed, at)
		if at == from {
			break
		}
		at = prev[at]
	}

	path := make([]NodeID, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}

// nodeItem is a priority queue entry for Dijkstra traversal.
type nodeItem struct {
	id       NodeID
	priority float64
}

type nodeQueue []*nodeItem

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].priority == q[j].priority {
		// Deterministic order for equal-cost frontiers.
		return q[i].id < q[j].id
	}
	return q[i].priority < q[j].priority
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) {
	*q = append(*q, x.(*nodeItem))
}

func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
