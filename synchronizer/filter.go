package synchronizer

import (
	"pathfinder/topology"
)

// FilterPathsDesiredLinks keeps the paths that traverse every desired link,
// that is, whose hops hold the link's two endpoints next to each other in
// either order. A link id unknown to the loaded topology matches no path.
func (s *Synchronizer) FilterPathsDesiredLinks(paths []PathResult, desired []string) []PathResult {
	return filterDesiredLinks(s.Topology(), paths, desired)
}

// FilterPathsUndesiredLinks drops the paths that traverse any undesired link.
// Unknown link ids are ignored.
func (s *Synchronizer) FilterPathsUndesiredLinks(paths []PathResult, undesired []string) []PathResult {
	return filterUndesiredLinks(s.Topology(), paths, undesired)
}

// FilterPathsLeCost keeps the paths whose cost is at most maxCost.
func (s *Synchronizer) FilterPathsLeCost(paths []PathResult, maxCost float64) []PathResult {
	return filterLeCost(paths, maxCost)
}

func filterDesiredLinks(topo *topology.Topology, paths []PathResult, desired []string) []PathResult {
	if len(desired) == 0 {
		return paths
	}
	endpoints := make([][2]string, 0, len(desired))
	for _, id := range desired {
		link, ok := lookupLink(topo, id)
		if !ok {
			return []PathResult{}
		}
		endpoints = append(endpoints, [2]string{link.EndpointA, link.EndpointB})
	}

	filtered := make([]PathResult, 0, len(paths))
	for _, p := range paths {
		keep := true
		for _, pair := range endpoints {
			if !traverses(p.Hops, pair[0], pair[1]) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func filterUndesiredLinks(topo *topology.Topology, paths []PathResult, undesired []string) []PathResult {
	if len(undesired) == 0 {
		return paths
	}
	endpoints := make([][2]string, 0, len(undesired))
	for _, id := range undesired {
		if link, ok := lookupLink(topo, id); ok {
			endpoints = append(endpoints, [2]string{link.EndpointA, link.EndpointB})
		}
	}

	filtered := make([]PathResult, 0, len(paths))
	for _, p := range paths {
		keep := true
		for _, pair := range endpoints {
			if traverses(p.Hops, pair[0], pair[1]) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func filterLeCost(paths []PathResult, maxCost float64) []PathResult {
	filtered := make([]PathResult, 0, len(paths))
	for _, p := range paths {
		if p.Cost <= maxCost {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func lookupLink(topo *topology.Topology, id string) (topology.Link, bool) {
	if topo == nil {
		return topology.Link{}, false
	}
	link, ok := topo.Links[id]
	return link, ok
}

// traverses reports whether a and b are adjacent hops.
func traverses(hops []string, a, b string) bool {
	for i := 0; i+1 < len(hops); i++ {
		if (hops[i] == a && hops[i+1] == b) || (hops[i] == b && hops[i+1] == a) {
			return true
		}
	}
	return false
}
