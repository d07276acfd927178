package synchronizer

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"pathfinder/graph"
	"pathfinder/topology"
)

// ErrInvalidQuery marks a query the caller must fix. The HTTP binding maps it
// to 400.
var ErrInvalidQuery = errors.New("invalid path query")

// PathQuery is the find-paths request.
type PathQuery struct {
	Source         string   `json:"source"`
	Destination    string   `json:"destination"`
	DesiredLinks   []string `json:"desired_links,omitempty"`
	UndesiredLinks []string `json:"undesired_links,omitempty"`
	MaximumCost    *float64 `json:"maximum_cost,omitempty"`
	// SpfAttribute names the link metric minimised by the search; empty counts hops.
	SpfAttribute string `json:"spf_attribute,omitempty"`
	// SpfMaxPaths is k; zero selects the configured default.
	SpfMaxPaths         int                    `json:"spf_max_paths,omitempty"`
	BaseMetrics         map[string]interface{} `json:"base_metrics,omitempty"`
	FlexibleMetrics     map[string]interface{} `json:"flexible_metrics,omitempty"`
	MinimumFlexibleHits *int                   `json:"minimum_flexible_hits,omitempty"`
}

func (q PathQuery) constrained() bool {
	return q.BaseMetrics != nil || q.FlexibleMetrics != nil || q.MinimumFlexibleHits != nil
}

type PathResult struct {
	Hops    []string               `json:"hops"`
	Cost    float64                `json:"cost"`
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

type PathResponse struct {
	Paths []PathResult `json:"paths"`
}

func emptyResponse() PathResponse {
	return PathResponse{Paths: []PathResult{}}
}

func (r PathResponse) clone() PathResponse {
	paths := make([]PathResult, len(r.Paths))
	for i, p := range r.Paths {
		paths[i] = PathResult{
			Hops:    append([]string(nil), p.Hops...),
			Cost:    p.Cost,
			Metrics: p.Metrics,
		}
	}
	return PathResponse{Paths: paths}
}

// FindPaths searches the loaded topology, strips switch hops, costs and
// filters the paths. Without a topology the response is empty.
func (s *Synchronizer) FindPaths(query PathQuery) (PathResponse, error) {
	start := time.Now()
	resp, err := s.findPaths(query)
	pathQueryDuration.Observe(time.Since(start).Seconds())
	pathQueryTotal.WithLabelValues(queryResult(resp, err)).Inc()
	return resp, err
}

func (s *Synchronizer) findPaths(query PathQuery) (PathResponse, error) {
	s.mu.Lock()
	topo, version := s.topo, s.store.Version()
	s.mu.Unlock()

	if topo == nil {
		log.Debugf("FindPaths, no topology loaded, %s -> %s", query.Source, query.Destination)
		return emptyResponse(), nil
	}
	if err := s.validate(query); err != nil {
		return PathResponse{}, err
	}
	if s.cache == nil {
		return s.search(query, topo)
	}

	key, err := cacheKey(version, query)
	if err != nil {
		return PathResponse{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return s.cache.do(key, func() (PathResponse, error) {
		return s.search(query, topo)
	})
}

func (s *Synchronizer) validate(q PathQuery) error {
	switch {
	case q.Source == "":
		return fmt.Errorf("%w: source is required", ErrInvalidQuery)
	case q.Destination == "":
		return fmt.Errorf("%w: destination is required", ErrInvalidQuery)
	case q.SpfMaxPaths < 0 || q.SpfMaxPaths > s.maxK:
		return fmt.Errorf("%w: spf_max_paths must be between 0 and %d, got %d", ErrInvalidQuery, s.maxK, q.SpfMaxPaths)
	case q.MinimumFlexibleHits != nil && q.FlexibleMetrics == nil:
		return fmt.Errorf("%w: minimum_flexible_hits requires flexible_metrics", ErrInvalidQuery)
	case q.FlexibleMetrics != nil && q.MinimumFlexibleHits == nil:
		return fmt.Errorf("%w: flexible_metrics requires minimum_flexible_hits", ErrInvalidQuery)
	}
	return nil
}

func (s *Synchronizer) search(q PathQuery, topo *topology.Topology) (PathResponse, error) {
	k := q.SpfMaxPaths
	if k == 0 {
		k = s.defaultK
	}

	var results []PathResult
	if q.constrained() {
		minimumHits := 0
		if q.MinimumFlexibleHits != nil {
			minimumHits = *q.MinimumFlexibleHits
		}
		paths, err := s.store.ConstrainedKShortestPaths(q.Source, q.Destination, q.BaseMetrics, q.FlexibleMetrics, minimumHits, k)
		if err = searchError(q, err); err != nil {
			return PathResponse{}, err
		}
		for _, p := range paths {
			results = append(results, s.costed(p.Hops, q.SpfAttribute, p.Metrics))
		}
	} else {
		paths, err := s.store.KShortestPaths(q.Source, q.Destination, q.SpfAttribute, k)
		if err = searchError(q, err); err != nil {
			return PathResponse{}, err
		}
		for _, p := range paths {
			results = append(results, s.costed(p.Hops, q.SpfAttribute, nil))
		}
	}

	results = filterDesiredLinks(topo, results, q.DesiredLinks)
	results = filterUndesiredLinks(topo, results, q.UndesiredLinks)
	if q.MaximumCost != nil {
		results = filterLeCost(results, *q.MaximumCost)
	}

	log.Debugf("FindPaths, %s -> %s k=%d weight=%q found %d paths", q.Source, q.Destination, k, q.SpfAttribute, len(results))
	if results == nil {
		return emptyResponse(), nil
	}
	return PathResponse{Paths: results}, nil
}

// costed prices the full walk the search found, then strips the interior
// switch hops for the response.
func (s *Synchronizer) costed(hops []string, weight string, metrics map[string]interface{}) PathResult {
	return PathResult{
		Hops:    s.store.RemoveSwitchHops(hops),
		Cost:    s.store.PathCost(hops, weight),
		Metrics: metrics,
	}
}

// searchError turns constraint and weight errors into client errors. A hit
// search limit is logged and the partial result kept.
func searchError(q PathQuery, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, graph.ErrSearchLimit):
		log.Warnf("FindPaths, %s -> %s returns a partial result: %v", q.Source, q.Destination, err)
		return nil
	case errors.Is(err, graph.ErrIncompatibleMetric),
		errors.Is(err, graph.ErrInvalidWeight),
		errors.Is(err, graph.ErrInvalidK),
		errors.Is(err, graph.ErrInvalidConstraint):
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	default:
		return err
	}
}

func queryResult(resp PathResponse, err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return "invalid"
	case err != nil:
		return "error"
	case len(resp.Paths) == 0:
		return "empty"
	default:
		return "found"
	}
}
