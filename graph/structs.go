package graph

import "errors"

type NodeKind int

const (
	SwitchNode NodeKind = iota
	InterfaceNode
)

func (k NodeKind) String() string {
	switch k {
	case SwitchNode:
		return "switch"
	case InterfaceNode:
		return "interface"
	default:
		return "unknown"
	}
}

type EdgeKind int

const (
	// MembershipEdge joins a switch to one of its interfaces and carries no metrics.
	MembershipEdge EdgeKind = iota
	// LinkEdge joins the two interfaces of a link and carries the link metadata.
	LinkEdge
)

var (
	ErrInvalidK           = errors.New("k must be a positive integer")
	ErrInvalidWeight      = errors.New("weight attribute is not a non-negative number")
	ErrIncompatibleMetric = errors.New("metric value is not comparable with the edge attribute")
	ErrInvalidConstraint  = errors.New("invalid path constraint")
	ErrSearchLimit        = errors.New("deviation search limit reached")
)

const (
	DefaultMetricValue   = 1.0
	DefaultMaxDeviations = 10000
)

// Path is one loopless walk through the graph together with its total weight.
type Path struct {
	Hops []string `json:"hops"`
	Cost float64  `json:"cost"`
	seq  int      // order in which the search discovered the path
}

// ConstrainedPath is a path accepted by ConstrainedKShortestPaths.
type ConstrainedPath struct {
	Hops         []string               `json:"hops"`
	Metrics      map[string]interface{} `json:"metrics"`
	FlexibleHits int                    `json:"flexible_hits"`
}

// TieBreak orders two candidate paths of equal cost. It returns true when a
// must be produced before b.
type TieBreak func(a, b Path) bool

// FewestHopsTieBreak prefers shorter hop sequences, then the lexicographically
// smaller sequence, then discovery order.
func FewestHopsTieBreak(a, b Path) bool {
	if len(a.Hops) != len(b.Hops) {
		return len(a.Hops) < len(b.Hops)
	}
	for i := range a.Hops {
		if a.Hops[i] != b.Hops[i] {
			return a.Hops[i] < b.Hops[i]
		}
	}
	return a.seq < b.seq
}

// InsertionTieBreak keeps equal-cost paths in discovery order.
func InsertionTieBreak(a, b Path) bool {
	return a.seq < b.seq
}

// TieBreakByName resolves the configuration names "hops" and "insertion".
func TieBreakByName(name string) (TieBreak, bool) {
	switch name {
	case "", "hops":
		return FewestHopsTieBreak, true
	case "insertion":
		return InsertionTieBreak, true
	default:
		return nil, false
	}
}

type Option func(*Store)

// WithDefaultMetricValue sets the value assigned to metric keys a link edge lacks.
func WithDefaultMetricValue(v interface{}) Option {
	return func(s *Store) {
		s.defaultValue = v
	}
}

func WithTieBreak(tb TieBreak) Option {
	return func(s *Store) {
		if tb != nil {
			s.tieBreak = tb
		}
	}
}

// WithMaxDeviations bounds the number of spur searches one path iterator may run.
func WithMaxDeviations(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxDeviations = n
		}
	}
}
