package graph

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// ConstrainedKShortestPaths walks the hop-count ordered path sequence and
// keeps up to k paths whose link edges all carry the base metric values and
// whose (edge, flexible metric) pairs within threshold number at least
// minimumHits. Membership edges are not evaluated.
func (s *Store) ConstrainedKShortestPaths(
	source, destination string,
	base map[string]interface{},
	flexible map[string]interface{},
	minimumHits int,
	k int,
) ([]ConstrainedPath, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if minimumHits < 0 {
		return nil, fmt.Errorf("%w: minimum flexible hits %d is negative", ErrInvalidConstraint, minimumHits)
	}
	if err := validateConstraints(base, flexible); err != nil {
		return nil, err
	}

	baseNames := sortedNames(base)
	flexibleNames := sortedNames(flexible)

	var results []ConstrainedPath
	examined := 0
	it := s.ShortestPaths(source, destination, "")
	for len(results) < k && it.Next() {
		examined++
		p := it.Path()
		ok, err := matchesBase(it.view, p.Hops, base, baseNames)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		hits, perMetric, err := flexibleHits(it.view, p.Hops, flexible, flexibleNames)
		if err != nil {
			return nil, err
		}
		if hits < minimumHits {
			continue
		}

		metrics := make(map[string]interface{}, len(base)+len(flexible))
		for name, want := range base {
			metrics[name] = want
		}
		for name, threshold := range flexible {
			if perMetric[name] > 0 {
				metrics[name] = threshold
			}
		}
		results = append(results, ConstrainedPath{
			Hops:         p.Hops,
			Metrics:      metrics,
			FlexibleHits: hits,
		})
	}

	log.Debugf("ConstrainedKShortestPaths: %s -> %s examined %d paths, accepted %d (base=%v flexible=%v minimum=%d)",
		source, destination, examined, len(results), base, flexible, minimumHits)

	if err := it.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func validateConstraints(base, flexible map[string]interface{}) error {
	for name, want := range base {
		if !isScalar(want) {
			return fmt.Errorf("%w: base metric %s has non-scalar value %v (%T)", ErrIncompatibleMetric, name, want, want)
		}
	}
	for name, threshold := range flexible {
		if _, ok := toFloat(threshold); ok {
			continue
		}
		if _, ok := threshold.(string); ok {
			continue
		}
		return fmt.Errorf("%w: flexible metric %s has unordered threshold %v (%T)", ErrIncompatibleMetric, name, threshold, threshold)
	}
	return nil
}

// matchesBase reports whether every link edge on hops carries every base
// metric with the required value. Default-filled values never match.
func matchesBase(v *snapshot, hops []string, base map[string]interface{}, names []string) (bool, error) {
	for i := 0; i+1 < len(hops); i++ {
		e, ok := v.edge(hops[i], hops[i+1])
		if !ok || e.kind != LinkEdge {
			continue
		}
		for _, name := range names {
			value, ok := e.attrs[name]
			if !ok || e.defaulted[name] {
				return false, nil
			}
			equal, err := metricEqual(value, base[name])
			if err != nil {
				return false, fmt.Errorf("base metric %s on %s-%s: %w", name, hops[i], hops[i+1], err)
			}
			if !equal {
				return false, nil
			}
		}
	}
	return true, nil
}

// flexibleHits counts the (link edge, flexible metric) pairs within threshold.
func flexibleHits(v *snapshot, hops []string, flexible map[string]interface{}, names []string) (int, map[string]int, error) {
	total := 0
	perMetric := make(map[string]int, len(names))
	for i := 0; i+1 < len(hops); i++ {
		e, ok := v.edge(hops[i], hops[i+1])
		if !ok || e.kind != LinkEdge {
			continue
		}
		for _, name := range names {
			value, ok := e.attrs[name]
			if !ok {
				continue
			}
			within, err := metricWithin(value, flexible[name])
			if err != nil {
				if e.defaulted[name] {
					continue
				}
				return 0, nil, fmt.Errorf("flexible metric %s on %s-%s: %w", name, hops[i], hops[i+1], err)
			}
			if within {
				total++
				perMetric[name]++
			}
		}
	}
	return total, perMetric, nil
}

func sortedNames(metrics map[string]interface{}) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
