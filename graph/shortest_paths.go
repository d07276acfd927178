package graph

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// PathIterator yields loopless paths between two nodes in non-decreasing cost
// order (Yen's deviation search). Paths are computed on demand.
//
//	it := store.ShortestPaths(src, dst, "delay")
//	for it.Next() {
//		p := it.Path()
//	}
//	if err := it.Err(); err != nil { ... }
type PathIterator struct {
	view          *snapshot
	source        string
	destination   string
	weight        string
	tieBreak      TieBreak
	maxDeviations int

	accepted   []Path
	candidates pathHeap
	seen       map[string]bool
	started    bool
	done       bool
	deviations int
	seq        int
	current    Path
	err        error
}

// ShortestPaths returns an iterator over the simple paths from source to
// destination. weight names the edge attribute to minimise; an empty weight
// counts hops. Unknown nodes give an empty sequence.
func (s *Store) ShortestPaths(source, destination, weight string) *PathIterator {
	s.mu.RLock()
	tieBreak, maxDeviations := s.tieBreak, s.maxDeviations
	s.mu.RUnlock()

	it := &PathIterator{
		view:          s.view(),
		source:        source,
		destination:   destination,
		weight:        weight,
		tieBreak:      tieBreak,
		maxDeviations: maxDeviations,
	}
	it.Reset()
	return it
}

// Reset restarts the sequence from the first path on the same graph snapshot.
func (it *PathIterator) Reset() {
	it.accepted = nil
	it.candidates = pathHeap{tieBreak: it.tieBreak}
	it.seen = make(map[string]bool)
	it.started = false
	it.done = false
	it.deviations = 0
	it.seq = 0
	it.current = Path{}
	it.err = nil
}

// Next advances to the next path. It returns false when the sequence is
// exhausted or an error occurred.
func (it *PathIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		return it.first()
	}

	prev := it.accepted[len(it.accepted)-1].Hops
	for i := 0; i < len(prev)-1; i++ {
		if it.deviations >= it.maxDeviations {
			it.fail(fmt.Errorf("%w: %d spur searches between %s and %s", ErrSearchLimit, it.deviations, it.source, it.destination))
			return false
		}
		it.deviations++

		spurNode := prev[i]
		rootPath := prev[:i+1]
		mask := newSearchMask()
		// Remove the links that are part of the previous shortest paths which share the same root path.
		for _, p := range it.accepted {
			if len(p.Hops) > i+1 && sliceEqual(p.Hops[:i+1], rootPath) {
				mask.edges[edgeKey(p.Hops[i], p.Hops[i+1])] = true
			}
		}
		// Remove the nodes in rootPath except spurNode.
		for _, node := range rootPath[:i] {
			mask.nodes[node] = true
		}

		spurPath, ok, err := it.view.shortestPath(spurNode, it.destination, it.weight, mask)
		if err != nil {
			it.fail(err)
			return false
		}
		if !ok {
			continue
		}

		totalPath := make([]string, 0, i+len(spurPath))
		totalPath = append(totalPath, rootPath[:i]...)
		totalPath = append(totalPath, spurPath...)
		key := pathKey(totalPath)
		if it.seen[key] {
			continue
		}
		cost, err := it.view.pathCost(totalPath, it.weight)
		if err != nil {
			it.fail(err)
			return false
		}
		it.seen[key] = true
		it.seq++
		it.candidates.insert(Path{Hops: totalPath, Cost: cost, seq: it.seq})
	}

	if it.candidates.Len() == 0 {
		it.done = true
		return false
	}
	it.accept(it.candidates.pop())
	return true
}

func (it *PathIterator) first() bool {
	hops, ok, err := it.view.shortestPath(it.source, it.destination, it.weight, newSearchMask())
	if err != nil {
		it.fail(err)
		return false
	}
	if !ok {
		it.done = true
		return false
	}
	cost, err := it.view.pathCost(hops, it.weight)
	if err != nil {
		it.fail(err)
		return false
	}
	it.seen[pathKey(hops)] = true
	it.accept(Path{Hops: hops, Cost: cost})
	return true
}

func (it *PathIterator) accept(p Path) {
	it.accepted = append(it.accepted, p)
	it.current = p
}

func (it *PathIterator) fail(err error) {
	it.err = err
	it.done = true
	log.Warnf("ShortestPaths: %s -> %s weight=%q stopped after %d paths: %v", it.source, it.destination, it.weight, len(it.accepted), err)
}

// Path returns the path produced by the last successful Next.
func (it *PathIterator) Path() Path {
	hops := make([]string, len(it.current.Hops))
	copy(hops, it.current.Hops)
	return Path{Hops: hops, Cost: it.current.Cost}
}

func (it *PathIterator) Err() error {
	return it.err
}

// KShortestPaths returns up to k paths from ShortestPaths. When the search
// stops with ErrSearchLimit the paths found so far are returned with the error.
func (s *Store) KShortestPaths(source, destination, weight string, k int) ([]Path, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	var paths []Path
	it := s.ShortestPaths(source, destination, weight)
	for len(paths) < k && it.Next() {
		paths = append(paths, it.Path())
	}
	return paths, it.Err()
}

// PathCost sums the weight attribute of consecutive hop pairs. Missing edges,
// missing attributes and an empty weight count 1; so do non-numeric values.
func (s *Store) PathCost(hops []string, weight string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cost float64
	for i := 0; i+1 < len(hops); i++ {
		w, err := edgeWeight(s.adj[hops[i]][hops[i+1]], weight)
		if err != nil {
			w = 1
		}
		cost += w
	}
	return cost
}

// RemoveSwitchHops drops the interior hops that are switches, leaving the
// interface hops. A hop unknown to the graph counts as a switch when a
// neighbouring hop is one of its interfaces ("<hop>:<port>").
func (s *Store) RemoveSwitchHops(hops []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(hops) <= 2 {
		return append([]string(nil), hops...)
	}
	result := make([]string, 0, len(hops))
	result = append(result, hops[0])
	for i := 1; i < len(hops)-1; i++ {
		if s.isSwitchHopLocked(hops, i) {
			continue
		}
		result = append(result, hops[i])
	}
	return append(result, hops[len(hops)-1])
}

func (s *Store) isSwitchHopLocked(hops []string, i int) bool {
	if kind, ok := s.kinds[hops[i]]; ok {
		return kind == SwitchNode
	}
	prefix := hops[i] + ":"
	return strings.HasPrefix(hops[i-1], prefix) || strings.HasPrefix(hops[i+1], prefix)
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pathKey(hops []string) string {
	return strings.Join(hops, "\x00")
}
