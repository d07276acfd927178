package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const sampleTopology = `{
  "switches": [
    {"id": "00:00:00:00:00:00:00:01", "ports": 2},
    {"id": "00:00:00:00:00:00:00:02", "ports": 2, "disabled_ports": [2]},
    {"id": "00:00:00:00:00:00:00:03", "ports": 1, "inactive": true}
  ],
  "links": [
    {"id": "L1", "endpoint_a": "00:00:00:00:00:00:00:01:1", "endpoint_b": "00:00:00:00:00:00:00:02:1",
     "metadata": {"delay": 10, "ownership": "bob"}},
    {"id": "L2", "endpoint_a": "00:00:00:00:00:00:00:01:2", "endpoint_b": "00:00:00:00:00:00:00:03:1", "disabled": true}
  ],
  "link_updates": [
    {"link_id": "L1", "metadata": {"delay": 4}}
  ]
}`

func TestLoadTopologyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleTopology), 0644))

	tf, hash, err := LoadTopologyFile(path)
	require.NoError(t, err)
	assert.Len(t, hash, 32)

	topo, err := tf.Topology()
	require.NoError(t, err)
	require.Len(t, topo.Switches, 3)
	require.Len(t, topo.Links, 2)

	s2 := topo.Switches["00:00:00:00:00:00:00:02"]
	assert.True(t, s2.Interfaces["00:00:00:00:00:00:00:02:1"].Usable())
	assert.False(t, s2.Interfaces["00:00:00:00:00:00:00:02:2"].Usable())
	assert.False(t, topo.Switches["00:00:00:00:00:00:00:03"].Active)

	l1 := topo.Links["L1"]
	assert.True(t, l1.Usable())
	assert.Equal(t, 10.0, l1.Metadata["delay"])
	assert.False(t, topo.Links["L2"].Usable())

	require.Len(t, tf.LinkUpdates, 1)
	assert.Equal(t, 4.0, tf.LinkUpdates[0].Metadata["delay"])
}

func TestSaveTopologyFileKeepsContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.json")
	require.NoError(t, os.WriteFile(src, []byte(sampleTopology), 0644))
	tf, _, err := LoadTopologyFile(src)
	require.NoError(t, err)

	dst := filepath.Join(dir, "dst.json")
	require.NoError(t, SaveTopologyFile(dst, tf))
	again, hash, err := LoadTopologyFile(dst)
	require.NoError(t, err)
	assert.Equal(t, tf, again)

	// saving the same description twice gives the same hash
	require.NoError(t, SaveTopologyFile(dst, again))
	_, hash2, err := LoadTopologyFile(dst)
	require.NoError(t, err)
	assert.Equal(t, hash, hash2)
}

func TestTopologyReportsEveryProblem(t *testing.T) {
	tf := &TopologyFile{
		Switches: []SwitchSpec{
			{ID: "S1", Ports: 1, DisabledPorts: []int{3}},
			{ID: "S1", Ports: 1},
			{Ports: 2},
		},
		Links: []LinkSpec{
			{ID: "L1", EndpointA: "S1:1", EndpointB: "S9:1"},
			{EndpointA: "S1:1", EndpointB: "S1:1"},
		},
		LinkUpdates: []LinkUpdateSpec{{LinkID: "L7"}},
	}

	topo, err := tf.Topology()

	assert.Nil(t, topo)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 6)
}

func TestLoadTopologyFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, _, err := LoadTopologyFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"switches": [`), 0644))
	_, _, err = LoadTopologyFile(bad)
	assert.Error(t, err)
}

func TestShippedTopology(t *testing.T) {
	tf, _, err := LoadTopologyFile("../topology.json")
	require.NoError(t, err)

	topo, err := tf.Topology()
	require.NoError(t, err)
	assert.Len(t, topo.Switches, 4)
	assert.Len(t, topo.Links, 4)
	assert.Equal(t, "L1", tf.LinkUpdates[0].LinkID)
}
