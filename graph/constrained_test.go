package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstrainedBaseMetricExcludesOtherOwners(t *testing.T) {
	s := loadedStore(t, squareTopology())

	// the alice side satisfies the delay threshold on both links but is
	// still excluded by the base metric
	paths, err := s.ConstrainedKShortestPaths("S1:3", "S4:3",
		map[string]interface{}{"ownership": "bob"},
		map[string]interface{}{"delay": 8.0},
		0, 5)

	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, viaS2, paths[0].Hops)
	assert.Zero(t, paths[0].FlexibleHits)
	assert.Equal(t, map[string]interface{}{"ownership": "bob"}, paths[0].Metrics)
}

func TestConstrainedFlexibleHits(t *testing.T) {
	s := loadedStore(t, squareTopology())

	tests := []struct {
		name        string
		flexible    map[string]interface{}
		minimumHits int
		expected    [][]string
		hits        []int
	}{
		{
			name:        "threshold met on the fast side",
			flexible:    map[string]interface{}{"delay": 8.0},
			minimumHits: 1,
			expected:    [][]string{viaS3},
			hits:        []int{2},
		},
		{
			name:        "hits are counted per edge and metric",
			flexible:    map[string]interface{}{"delay": 10, "ownership": "bob"},
			minimumHits: 4,
			expected:    [][]string{viaS2, viaS3},
			hits:        []int{4, 4},
		},
		{
			name:        "loose threshold keeps both",
			flexible:    map[string]interface{}{"delay": 100.0},
			minimumHits: 2,
			expected:    [][]string{viaS2, viaS3},
			hits:        []int{2, 2},
		},
		{
			name:        "unsatisfiable minimum",
			flexible:    map[string]interface{}{"delay": 100.0},
			minimumHits: 50,
		},
		{
			name:        "unknown metric never hits",
			flexible:    map[string]interface{}{"jitter": 1.0},
			minimumHits: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			paths, err := s.ConstrainedKShortestPaths("S1:3", "S4:3", nil, tc.flexible, tc.minimumHits, 5)
			require.NoError(t, err)
			require.Len(t, paths, len(tc.expected))
			for i, p := range paths {
				assert.Equal(t, tc.expected[i], p.Hops)
				assert.Equal(t, tc.hits[i], p.FlexibleHits)
				for name, threshold := range tc.flexible {
					assert.Equal(t, threshold, p.Metrics[name])
				}
			}
		})
	}
}

func TestConstrainedStopsAtK(t *testing.T) {
	s := loadedStore(t, squareTopology())

	paths, err := s.ConstrainedKShortestPaths("S1:3", "S4:3", nil, nil, 0, 1)

	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, viaS2, paths[0].Hops)
	assert.Empty(t, paths[0].Metrics)
}

func TestConstrainedDefaultFilledValuesNeverMatch(t *testing.T) {
	topo := squareTopology()
	l3 := topo.Links["L3"]
	l3.Metadata = map[string]interface{}{"delay": 5.0}
	topo.Links["L3"] = l3
	s := loadedStore(t, topo, WithDefaultMetricValue("bob"))

	paths, err := s.ConstrainedKShortestPaths("S1:3", "S4:3",
		map[string]interface{}{"ownership": "bob"}, nil, 0, 5)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, viaS2, paths[0].Hops)

	// a numeric default on a string metric is skipped instead of failing
	s = loadedStore(t, topo)
	paths, err = s.ConstrainedKShortestPaths("S1:3", "S4:3",
		nil, map[string]interface{}{"ownership": "bob"}, 0, 5)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestConstrainedIncompatibleMetrics(t *testing.T) {
	s := loadedStore(t, squareTopology())

	tests := []struct {
		name        string
		base        map[string]interface{}
		flexible    map[string]interface{}
		minimumHits int
		k           int
		expected    error
	}{
		{
			name:     "string base against numeric edges",
			base:     map[string]interface{}{"delay": "fast"},
			k:        1,
			expected: ErrIncompatibleMetric,
		},
		{
			name:     "numeric threshold against string edges",
			flexible: map[string]interface{}{"ownership": 3},
			k:        1,
			expected: ErrIncompatibleMetric,
		},
		{
			name:     "non-scalar base value",
			base:     map[string]interface{}{"ownership": []string{"bob"}},
			k:        1,
			expected: ErrIncompatibleMetric,
		},
		{
			name:     "boolean threshold",
			flexible: map[string]interface{}{"delay": true},
			k:        1,
			expected: ErrIncompatibleMetric,
		},
		{
			name:        "negative minimum",
			minimumHits: -1,
			k:           1,
			expected:    ErrInvalidConstraint,
		},
		{
			name:     "zero k",
			expected: ErrInvalidK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.ConstrainedKShortestPaths("S1:3", "S4:3", tc.base, tc.flexible, tc.minimumHits, tc.k)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestConstrainedUnknownEndpoints(t *testing.T) {
	s := loadedStore(t, squareTopology())

	paths, err := s.ConstrainedKShortestPaths("nope", "S4:3", map[string]interface{}{"ownership": "bob"}, nil, 0, 3)

	require.NoError(t, err)
	assert.Empty(t, paths)
}
