package graph

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"pathfinder/topology"
)

// Store owns the weighted topology graph. Mutations hold the write lock for a
// whole rebuild or a single edge update, so searches never observe a
// partially built graph.
type Store struct {
	mu         sync.RWMutex
	kinds      map[string]NodeKind
	adj        map[string]map[string]*edge
	metricKeys map[string]struct{}
	version    uint64

	snapMu sync.Mutex
	snap   *snapshot

	defaultValue  interface{}
	tieBreak      TieBreak
	maxDeviations int
}

// edge values are never mutated once stored; updates swap in a new edge.
type edge struct {
	kind      EdgeKind
	linkID    string
	attrs     map[string]interface{}
	defaulted map[string]bool
}

func New(opts ...Option) *Store {
	s := &Store{
		kinds:         make(map[string]NodeKind),
		adj:           make(map[string]map[string]*edge),
		metricKeys:    make(map[string]struct{}),
		defaultValue:  DefaultMetricValue,
		tieBreak:      FewestHopsTieBreak,
		maxDeviations: DefaultMaxDeviations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Store) clearLocked() {
	s.kinds = make(map[string]NodeKind)
	s.adj = make(map[string]map[string]*edge)
	s.metricKeys = make(map[string]struct{})
	s.touchLocked()
}

func (s *Store) touchLocked() {
	s.version++
	s.snap = nil
}

// UpdateTopology replaces the graph content with the usable switches,
// interfaces and links given.
func (s *Store) UpdateTopology(switches []topology.Switch, links []topology.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()

	for _, sw := range switches {
		if !sw.Active {
			continue
		}
		s.kinds[sw.ID] = SwitchNode
		for _, iface := range sw.Interfaces {
			if !iface.Usable() {
				continue
			}
			s.kinds[iface.ID] = InterfaceNode
			s.setEdgeLocked(sw.ID, iface.ID, &edge{kind: MembershipEdge})
		}
	}

	linkCount := 0
	for _, link := range links {
		if !link.Usable() {
			continue
		}
		a, b := link.Endpoints()
		if !s.linkableLocked(a, b) {
			log.Debugf("UpdateTopology: link %s skipped, endpoints %s and %s are not both in the graph", link.ID, a, b)
			continue
		}
		for key := range link.Metadata {
			s.metricKeys[key] = struct{}{}
		}
		s.setEdgeLocked(a, b, &edge{
			kind:   LinkEdge,
			linkID: link.ID,
			attrs:  copyAttrs(link.Metadata),
		})
		linkCount++
	}

	s.fillDefaultsLocked()

	log.Infof("UpdateTopology, node num: %d, link num: %d, metric keys: %v", len(s.kinds), linkCount, s.metricKeyList())
}

// UpdateLinkMetadata replaces the attributes of the edge for link. It is a
// no-op when the link is not part of the graph.
func (s *Store) UpdateLinkMetadata(link *topology.Link) {
	if link == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, b := link.Endpoints()
	if _, ok := s.kinds[a]; !ok {
		log.Debugf("UpdateLinkMetadata: link %s endpoint %s not in graph", link.ID, a)
		return
	}
	if _, ok := s.kinds[b]; !ok {
		log.Debugf("UpdateLinkMetadata: link %s endpoint %s not in graph", link.ID, b)
		return
	}
	current, ok := s.adj[a][b]
	if !ok || current.kind != LinkEdge {
		log.Debugf("UpdateLinkMetadata: no link edge between %s and %s", a, b)
		return
	}

	for key := range link.Metadata {
		s.metricKeys[key] = struct{}{}
	}
	updated := &edge{
		kind:   LinkEdge,
		linkID: link.ID,
		attrs:  copyAttrs(link.Metadata),
	}
	s.fillEdgeDefaultsLocked(updated)
	s.setEdgeLocked(a, b, updated)
	s.touchLocked()

	log.Debugf("UpdateLinkMetadata: link %s (%s <-> %s) attrs %v", link.ID, a, b, updated.attrs)
}

func (s *Store) linkableLocked(a, b string) bool {
	if a == b {
		return false
	}
	kindA, okA := s.kinds[a]
	kindB, okB := s.kinds[b]
	return okA && okB && kindA == InterfaceNode && kindB == InterfaceNode
}

func (s *Store) setEdgeLocked(a, b string, e *edge) {
	if s.adj[a] == nil {
		s.adj[a] = make(map[string]*edge)
	}
	if s.adj[b] == nil {
		s.adj[b] = make(map[string]*edge)
	}
	s.adj[a][b] = e
	s.adj[b][a] = e
}

func (s *Store) fillDefaultsLocked() {
	for _, neighbors := range s.adj {
		for _, e := range neighbors {
			if e.kind == LinkEdge {
				s.fillEdgeDefaultsLocked(e)
			}
		}
	}
}

// fillEdgeDefaultsLocked is only applied to edges not yet visible to readers.
func (s *Store) fillEdgeDefaultsLocked(e *edge) {
	for key := range s.metricKeys {
		if _, ok := e.attrs[key]; ok {
			continue
		}
		e.attrs[key] = s.defaultValue
		if e.defaulted == nil {
			e.defaulted = make(map[string]bool)
		}
		e.defaulted[key] = true
	}
}

func (s *Store) metricKeyList() []string {
	keys := make([]string, 0, len(s.metricKeys))
	for key := range s.metricKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func copyAttrs(metadata map[string]interface{}) map[string]interface{} {
	attrs := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		attrs[k] = v
	}
	return attrs
}

// Version changes whenever the graph content changes.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.kinds)
}

func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, neighbors := range s.adj {
		count += len(neighbors)
	}
	return count / 2
}

func (s *Store) HasNode(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.kinds[id]
	return ok
}

func (s *Store) NodeKind(id string) (NodeKind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kind, ok := s.kinds[id]
	return kind, ok
}

func (s *Store) HasEdge(a, b string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.adj[a][b]
	return ok
}

// EdgeAttributes returns a copy of the attributes of the edge between a and b.
func (s *Store) EdgeAttributes(a, b string) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.adj[a][b]
	if !ok {
		return nil, false
	}
	return copyAttrs(e.attrs), true
}

// MetricKeys returns every metric key seen on any link, sorted.
func (s *Store) MetricKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metricKeyList()
}

// view returns the immutable snapshot searches run on, building it at most
// once per graph version.
func (s *Store) view() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snap == nil {
		s.snap = s.buildSnapshotLocked()
	}
	return s.snap
}
