package graph

import (
	"container/heap"
	"fmt"
	"sort"
)

// snapshot is a read-only copy of the graph that path iterators work on
// without holding the store lock.
type snapshot struct {
	kinds     map[string]NodeKind
	neighbors map[string][]string
	edges     map[string]map[string]*edge
}

func (s *Store) buildSnapshotLocked() *snapshot {
	v := &snapshot{
		kinds:     make(map[string]NodeKind, len(s.kinds)),
		neighbors: make(map[string][]string, len(s.adj)),
		edges:     make(map[string]map[string]*edge, len(s.adj)),
	}
	for id, kind := range s.kinds {
		v.kinds[id] = kind
	}
	for id, adjacent := range s.adj {
		ids := make([]string, 0, len(adjacent))
		edges := make(map[string]*edge, len(adjacent))
		for other, e := range adjacent {
			ids = append(ids, other)
			edges[other] = e
		}
		sort.Strings(ids)
		v.neighbors[id] = ids
		v.edges[id] = edges
	}
	return v
}

func (v *snapshot) edge(a, b string) (*edge, bool) {
	e, ok := v.edges[a][b]
	return e, ok
}

// edgeWeight is 1 for hop counting, for edges without the attribute and for
// missing edges.
func edgeWeight(e *edge, weight string) (float64, error) {
	if weight == "" || e == nil {
		return 1, nil
	}
	raw, ok := e.attrs[weight]
	if !ok {
		return 1, nil
	}
	w, ok := toFloat(raw)
	if !ok || w < 0 {
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidWeight, weight, raw)
	}
	return w, nil
}

func (v *snapshot) pathCost(hops []string, weight string) (float64, error) {
	var cost float64
	for i := 0; i+1 < len(hops); i++ {
		e, _ := v.edge(hops[i], hops[i+1])
		w, err := edgeWeight(e, weight)
		if err != nil {
			return 0, err
		}
		cost += w
	}
	return cost, nil
}

// searchMask hides nodes and edges from a spur search.
type searchMask struct {
	nodes map[string]bool
	edges map[[2]string]bool
}

func newSearchMask() searchMask {
	return searchMask{
		nodes: make(map[string]bool),
		edges: make(map[[2]string]bool),
	}
}

func edgeKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (m searchMask) hidesEdge(a, b string) bool {
	return m.edges[edgeKey(a, b)]
}

// shortestPath returns one minimum-weight path from source to destination
// avoiding the masked nodes and edges.
func (v *snapshot) shortestPath(source, destination, weight string, mask searchMask) ([]string, bool, error) {
	if _, ok := v.kinds[source]; !ok || mask.nodes[source] {
		return nil, false, nil
	}
	if _, ok := v.kinds[destination]; !ok || mask.nodes[destination] {
		return nil, false, nil
	}
	if source == destination {
		return []string{source}, true, nil
	}
	if weight == "" {
		hops, ok := v.bfs(source, destination, mask)
		return hops, ok, nil
	}
	return v.dijkstra(source, destination, weight, mask)
}

func (v *snapshot) bfs(source, destination string, mask searchMask) ([]string, bool) {
	predecessors := map[string]string{source: ""}
	queue := []string{source}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range v.neighbors[node] {
			if _, seen := predecessors[next]; seen || mask.nodes[next] || mask.hidesEdge(node, next) {
				continue
			}
			predecessors[next] = node
			if next == destination {
				return walkBack(predecessors, source, destination), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func (v *snapshot) dijkstra(source, destination, weight string, mask searchMask) ([]string, bool, error) {
	dist := map[string]float64{source: 0}
	predecessors := map[string]string{source: ""}
	done := make(map[string]bool)

	pq := &nodePQ{{id: source}}
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*nodeItem)
		if done[item.id] {
			continue
		}
		done[item.id] = true
		if item.id == destination {
			return walkBack(predecessors, source, destination), true, nil
		}
		for _, next := range v.neighbors[item.id] {
			if done[next] || mask.nodes[next] || mask.hidesEdge(item.id, next) {
				continue
			}
			w, err := edgeWeight(v.edges[item.id][next], weight)
			if err != nil {
				return nil, false, err
			}
			candidate := item.dist + w
			if current, ok := dist[next]; ok && candidate >= current {
				continue
			}
			dist[next] = candidate
			predecessors[next] = item.id
			heap.Push(pq, &nodeItem{id: next, dist: candidate})
		}
	}
	return nil, false, nil
}

func walkBack(predecessors map[string]string, source, destination string) []string {
	var reversed []string
	for node := destination; node != source; node = predecessors[node] {
		reversed = append(reversed, node)
	}
	reversed = append(reversed, source)
	hops := make([]string, len(reversed))
	for i, node := range reversed {
		hops[len(reversed)-1-i] = node
	}
	return hops
}

type nodeItem struct {
	id   string
	dist float64
}

// nodePQ is a min-heap on tentative distance, ties broken by node id.
type nodePQ []*nodeItem

func (pq nodePQ) Len() int { return len(pq) }

func (pq nodePQ) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].id < pq[j].id
}

func (pq nodePQ) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *nodePQ) Push(x interface{}) { *pq = append(*pq, x.(*nodeItem)) }

func (pq *nodePQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
