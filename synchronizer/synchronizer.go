package synchronizer

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"pathfinder/graph"
	"pathfinder/topology"
)

const (
	DefaultK         = 10
	DefaultMaxK      = 100
	DefaultCacheSize = 256

	// LinksMetadataChangedError names the notification emitted for a
	// link metadata event that lacks its link or its metadata.
	LinksMetadataChangedError = "links_metadata_changed_error"
	// TopologyUpdatedError names the notification emitted for a topology
	// event that could not be decoded.
	TopologyUpdatedError = "topology_updated_error"
)

// Outcome reports what an event did to the synchronizer state.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	// OutcomeIgnored is a topology event without a topology.
	OutcomeIgnored
	// OutcomeStale is an event not newer than the last accepted one for the same key.
	OutcomeStale
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeStale:
		return "stale"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type Notification struct {
	Name    string                 `json:"name"`
	Content map[string]interface{} `json:"content"`
}

// Notifier receives internal error notifications.
type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type logNotifier struct{}

func (logNotifier) Notify(n Notification) {
	log.Errorf("Notification %s: %v", n.Name, n.Content)
}

type Option func(*Synchronizer)

func WithDefaultK(k int) Option {
	return func(s *Synchronizer) {
		s.defaultK = k
	}
}

func WithMaxK(k int) Option {
	return func(s *Synchronizer) {
		s.maxK = k
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Synchronizer) {
		s.notifier = n
	}
}

// WithCacheSize sets the number of query results kept. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(s *Synchronizer) {
		s.cacheSize = n
	}
}

// WithTopologyListener registers fn to be called after every accepted topology.
func WithTopologyListener(fn func(*topology.Topology)) Option {
	return func(s *Synchronizer) {
		s.listeners = append(s.listeners, fn)
	}
}

// Synchronizer feeds topology and link metadata events into a graph.Store
// under a last-write-wins policy and answers path queries against it.
type Synchronizer struct {
	mu            sync.Mutex
	store         *graph.Store
	topo          *topology.Topology
	topoUpdatedAt time.Time
	linkUpdatedAt map[string]time.Time

	defaultK  int
	maxK      int
	cacheSize int
	notifier  Notifier
	listeners []func(*topology.Topology)
	cache     *queryCache
}

func New(store *graph.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:         store,
		linkUpdatedAt: make(map[string]time.Time),
		defaultK:      DefaultK,
		maxK:          DefaultMaxK,
		cacheSize:     DefaultCacheSize,
		notifier:      logNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxK < s.defaultK {
		s.maxK = s.defaultK
	}
	if s.cacheSize > 0 {
		cache, err := newQueryCache(s.cacheSize)
		if err != nil {
			log.Warnf("New synchronizer, query cache disabled: %v", err)
		} else {
			s.cache = cache
		}
	}
	return s
}

func (s *Synchronizer) Store() *graph.Store {
	return s.store
}

// UpdateTopology accepts the event's topology when none is loaded yet or when
// the event is strictly newer than the last accepted one, and rebuilds the graph.
func (s *Synchronizer) UpdateTopology(event topology.TopologyEvent) Outcome {
	if event.Topology == nil {
		log.Debugf("UpdateTopology, event at %s carries no topology", event.Timestamp.Format(time.RFC3339Nano))
		return s.record("topology", OutcomeIgnored)
	}

	s.mu.Lock()
	if s.topo != nil && !event.Timestamp.After(s.topoUpdatedAt) {
		last := s.topoUpdatedAt
		s.mu.Unlock()
		log.Debugf("UpdateTopology, discard stale event at %s, last accepted %s",
			event.Timestamp.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
		return s.record("topology", OutcomeStale)
	}
	s.topo = event.Topology
	s.topoUpdatedAt = event.Timestamp
	s.store.UpdateTopology(event.Topology.SwitchList(), event.Topology.LinkList())
	listeners := s.listeners
	s.mu.Unlock()

	log.Infof("UpdateTopology, accepted event at %s, switch num: %d, link num: %d",
		event.Timestamp.Format(time.RFC3339Nano), len(event.Topology.Switches), len(event.Topology.Links))
	for _, fn := range listeners {
		fn(event.Topology)
	}
	return s.record("topology", OutcomeAccepted)
}

// UpdateLinksMetadataChanged applies a link metadata event under a per-link
// last-write-wins gate. An event without a link only raises a notification;
// an event without metadata is still applied and raises a notification.
func (s *Synchronizer) UpdateLinksMetadataChanged(event topology.LinkMetadataEvent) Outcome {
	if event.Link == nil {
		// best effort: the store ignores a nil link
		s.mu.Lock()
		s.store.UpdateLinkMetadata(nil)
		s.mu.Unlock()
		s.notifyMalformed("", "event has no link", event.Timestamp)
		return s.record("link_metadata", OutcomeMalformed)
	}

	link := mergeMetadata(event.Link, event.Metadata)

	s.mu.Lock()
	applied := s.applyLinkLocked(link, event.Timestamp)
	s.mu.Unlock()

	if event.Metadata == nil {
		s.notifyMalformed(link.ID, "event has no metadata", event.Timestamp)
		return s.record("link_metadata", OutcomeMalformed)
	}
	if !applied {
		log.Debugf("UpdateLinksMetadataChanged, discard stale event for link %s at %s",
			link.ID, event.Timestamp.Format(time.RFC3339Nano))
		return s.record("link_metadata", OutcomeStale)
	}
	log.Infof("UpdateLinksMetadataChanged, link %s metadata: %v", link.ID, link.Metadata)
	return s.record("link_metadata", OutcomeAccepted)
}

func (s *Synchronizer) applyLinkLocked(link *topology.Link, ts time.Time) bool {
	if last, ok := s.linkUpdatedAt[link.ID]; ok && !ts.After(last) {
		return false
	}
	s.store.UpdateLinkMetadata(link)
	s.linkUpdatedAt[link.ID] = ts
	return true
}

// mergeMetadata overlays the changed keys on a copy of the link's metadata.
func mergeMetadata(link *topology.Link, changed map[string]interface{}) *topology.Link {
	merged := *link
	merged.Metadata = make(map[string]interface{}, len(link.Metadata)+len(changed))
	for k, v := range link.Metadata {
		merged.Metadata[k] = v
	}
	for k, v := range changed {
		merged.Metadata[k] = v
	}
	return &merged
}

func (s *Synchronizer) notifyMalformed(linkID, reason string, ts time.Time) {
	log.Warnf("UpdateLinksMetadataChanged, malformed event for link %q: %s", linkID, reason)
	s.notifier.Notify(Notification{
		Name: LinksMetadataChangedError,
		Content: map[string]interface{}{
			"link_id":   linkID,
			"reason":    reason,
			"timestamp": ts,
		},
	})
}

// Notify forwards n to the configured notifier.
func (s *Synchronizer) Notify(n Notification) {
	s.notifier.Notify(n)
}

func (s *Synchronizer) record(kind string, o Outcome) Outcome {
	eventsTotal.WithLabelValues(kind, o.String()).Inc()
	return o
}

// Topology returns the last accepted topology, nil before the first one.
func (s *Synchronizer) Topology() *topology.Topology {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topo
}

func (s *Synchronizer) TopologyUpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topoUpdatedAt
}

func (s *Synchronizer) LinkUpdatedAt(linkID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.linkUpdatedAt[linkID]
	return ts, ok
}

// Status summarises the loaded topology and the graph built from it.
type Status struct {
	Loaded     bool      `json:"loaded"`
	UpdatedAt  time.Time `json:"updated_at"`
	Switches   int       `json:"switches"`
	Links      int       `json:"links"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	Version    uint64    `json:"version"`
	MetricKeys []string  `json:"metric_keys"`
}

func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Loaded:     s.topo != nil,
		UpdatedAt:  s.topoUpdatedAt,
		Nodes:      s.store.NodeCount(),
		Edges:      s.store.EdgeCount(),
		Version:    s.store.Version(),
		MetricKeys: s.store.MetricKeys(),
	}
	if s.topo != nil {
		st.Switches = len(s.topo.Switches)
		st.Links = len(s.topo.Links)
	}
	return st
}

func (st Status) String() string {
	return fmt.Sprintf("loaded=%t switches=%d links=%d nodes=%d edges=%d version=%d",
		st.Loaded, st.Switches, st.Links, st.Nodes, st.Edges, st.Version)
}
