package synchronizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathfinder_events_total",
		Help: "Topology and link metadata events by kind and outcome",
	}, []string{"kind", "outcome"})

	pathQueryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathfinder_path_query_total",
		Help: "Path queries by result",
	}, []string{"result"})

	pathQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pathfinder_path_query_duration_seconds",
		Help:    "Path query duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	})

	pathQueryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathfinder_path_query_cache_hits_total",
		Help: "Path queries answered from the result cache",
	})

	pathQueryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathfinder_path_query_cache_misses_total",
		Help: "Path queries that ran a search",
	})
)
