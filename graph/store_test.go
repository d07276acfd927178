package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/topology"
)

// squareTopology builds four switches joined in a ring S1-S2-S4-S3-S1. The
// S2 side is owned by bob and slow, the S3 side by alice and fast.
func squareTopology() *topology.Topology {
	topo := topology.New()
	for _, id := range []string{"S1", "S2", "S3", "S4"} {
		topo.AddSwitch(id, 3)
	}
	topo.AddLink("L1", "S1:1", "S2:1", map[string]interface{}{"delay": 10.0, "ownership": "bob"})
	topo.AddLink("L2", "S2:2", "S4:1", map[string]interface{}{"delay": 10.0, "ownership": "bob"})
	topo.AddLink("L3", "S1:2", "S3:1", map[string]interface{}{"delay": 5.0, "ownership": "alice"})
	topo.AddLink("L4", "S3:2", "S4:2", map[string]interface{}{"delay": 5.0, "ownership": "alice"})
	return topo
}

func loadedStore(t *testing.T, topo *topology.Topology, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)
	s.UpdateTopology(topo.SwitchList(), topo.LinkList())
	return s
}

func TestUpdateTopologyBuildsMembershipAndLinkEdges(t *testing.T) {
	s := loadedStore(t, squareTopology())

	// 4 switches + 12 interfaces, 12 membership edges + 4 link edges
	assert.Equal(t, 16, s.NodeCount())
	assert.Equal(t, 16, s.EdgeCount())

	kind, ok := s.NodeKind("S1")
	require.True(t, ok)
	assert.Equal(t, SwitchNode, kind)
	kind, ok = s.NodeKind("S1:1")
	require.True(t, ok)
	assert.Equal(t, InterfaceNode, kind)

	assert.True(t, s.HasEdge("S1", "S1:1"))
	assert.True(t, s.HasEdge("S2:1", "S1:1"))
	attrs, ok := s.EdgeAttributes("S1:1", "S2:1")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"delay": 10.0, "ownership": "bob"}, attrs)

	attrs, ok = s.EdgeAttributes("S1", "S1:1")
	require.True(t, ok)
	assert.Empty(t, attrs)
}

func TestUpdateTopologySkipsUnusableElements(t *testing.T) {
	topo := squareTopology()

	s3 := topo.Switches["S3"]
	s3.Active = false
	topo.Switches["S3"] = s3

	s1 := topo.Switches["S1"]
	iface := s1.Interfaces["S1:3"]
	iface.Enabled = false
	s1.Interfaces["S1:3"] = iface

	l2 := topo.Links["L2"]
	l2.Active = false
	topo.Links["L2"] = l2

	s := loadedStore(t, topo)

	assert.False(t, s.HasNode("S3"))
	assert.False(t, s.HasNode("S3:1"))
	assert.False(t, s.HasNode("S1:3"))
	assert.True(t, s.HasNode("S1:2"))
	assert.False(t, s.HasEdge("S2:2", "S4:1"), "inactive link must be absent")
	assert.False(t, s.HasEdge("S1:2", "S3:1"), "link to a missing endpoint must be absent")
	assert.True(t, s.HasEdge("S1:1", "S2:1"))
}

func TestUpdateTopologyIsIdempotent(t *testing.T) {
	topo := squareTopology()
	s := loadedStore(t, topo)
	nodes, edges := s.NodeCount(), s.EdgeCount()
	attrs, _ := s.EdgeAttributes("S3:2", "S4:2")

	s.UpdateTopology(topo.SwitchList(), topo.LinkList())

	assert.Equal(t, nodes, s.NodeCount())
	assert.Equal(t, edges, s.EdgeCount())
	again, _ := s.EdgeAttributes("S3:2", "S4:2")
	assert.Equal(t, attrs, again)
}

func TestUpdateTopologyFillsMissingMetrics(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		expected interface{}
	}{
		{name: "default value", expected: DefaultMetricValue},
		{name: "configured value", opts: []Option{WithDefaultMetricValue(100.0)}, expected: 100.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			topo := squareTopology()
			topo.AddLink("L5", "S1:3", "S4:3", map[string]interface{}{"bandwidth": 40.0})

			s := loadedStore(t, topo, tc.opts...)

			assert.Equal(t, []string{"bandwidth", "delay", "ownership"}, s.MetricKeys())
			attrs, ok := s.EdgeAttributes("S1:3", "S4:3")
			require.True(t, ok)
			assert.Equal(t, 40.0, attrs["bandwidth"])
			assert.Equal(t, tc.expected, attrs["delay"])
			assert.Equal(t, tc.expected, attrs["ownership"])

			attrs, _ = s.EdgeAttributes("S1:1", "S2:1")
			assert.Equal(t, tc.expected, attrs["bandwidth"])
		})
	}
}

func TestUpdateLinkMetadata(t *testing.T) {
	topo := squareTopology()
	s := loadedStore(t, topo)
	version := s.Version()

	link := topo.Links["L1"]
	link.Metadata = map[string]interface{}{"delay": 2.0, "utilization": 0.5}
	s.UpdateLinkMetadata(&link)

	attrs, ok := s.EdgeAttributes("S1:1", "S2:1")
	require.True(t, ok)
	assert.Equal(t, 2.0, attrs["delay"])
	assert.Equal(t, 0.5, attrs["utilization"])
	assert.Equal(t, DefaultMetricValue, attrs["ownership"], "known key dropped from metadata is default-filled")
	assert.Greater(t, s.Version(), version)

	// other edges are untouched until the next rebuild
	attrs, _ = s.EdgeAttributes("S1:2", "S3:1")
	assert.NotContains(t, attrs, "utilization")
	assert.Contains(t, s.MetricKeys(), "utilization")
}

func TestUpdateLinkMetadataNoop(t *testing.T) {
	s := loadedStore(t, squareTopology())
	version := s.Version()

	unknown := topology.Link{ID: "LX", EndpointA: "S9:1", EndpointB: "S1:1", Metadata: map[string]interface{}{"delay": 1.0}}
	s.UpdateLinkMetadata(&unknown)
	s.UpdateLinkMetadata(nil)
	// both endpoints exist but are not linked
	unlinked := topology.Link{ID: "LY", EndpointA: "S1:3", EndpointB: "S2:3", Metadata: map[string]interface{}{"delay": 1.0}}
	s.UpdateLinkMetadata(&unlinked)

	assert.Equal(t, version, s.Version())
	assert.False(t, s.HasEdge("S1:3", "S2:3"))
}

func TestClear(t *testing.T) {
	s := loadedStore(t, squareTopology())
	s.Clear()
	s.Clear()

	assert.Zero(t, s.NodeCount())
	assert.Zero(t, s.EdgeCount())
	assert.Empty(t, s.MetricKeys())
}

func TestPathCost(t *testing.T) {
	s := loadedStore(t, squareTopology())
	hops := []string{"S1:3", "S1", "S1:1", "S2:1"}

	assert.Equal(t, float64(len(hops)-1), s.PathCost(hops, ""))
	assert.Equal(t, 12.0, s.PathCost(hops, "delay"))
	assert.Equal(t, 3.0, s.PathCost(hops, "missing"))
	// consecutive interfaces with no edge between them count 1
	assert.Equal(t, 2.0, s.PathCost([]string{"S1:1", "S1:2", "S1:3"}, "delay"))
	// non-numeric attributes fall back to 1
	assert.Equal(t, 1.0, s.PathCost([]string{"S1:1", "S2:1"}, "ownership"))
	assert.Zero(t, s.PathCost([]string{"S1:1"}, "delay"))
}

func TestRemoveSwitchHops(t *testing.T) {
	empty := New()
	assert.Equal(t, []string{"S:1", "S:2"}, empty.RemoveSwitchHops([]string{"S:1", "S", "S:2"}))
	assert.Equal(t,
		[]string{"00:00:00:00:00:00:00:01:1", "00:00:00:00:00:00:00:01:2"},
		empty.RemoveSwitchHops([]string{"00:00:00:00:00:00:00:01:1", "00:00:00:00:00:00:00:01", "00:00:00:00:00:00:00:01:2"}),
	)

	s := loadedStore(t, squareTopology())
	hops := []string{"S1:3", "S1", "S1:1", "S2:1", "S2", "S2:2", "S4:1", "S4", "S4:3"}
	assert.Equal(t, []string{"S1:3", "S1:1", "S2:1", "S2:2", "S4:1", "S4:3"}, s.RemoveSwitchHops(hops))

	// endpoints are kept even when they are switches
	hops = []string{"S1", "S1:1", "S2:1", "S2"}
	assert.Equal(t, hops, s.RemoveSwitchHops(hops))
}
