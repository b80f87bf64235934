package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokedex_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"}, // "redis", "memory"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokedex_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// StaleServed tracks stale values served while another holder rebuilds
	StaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokedex_cache_stale_served_total",
			Help: "Total number of stale cache entries served during a rebuild",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokedex_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "lock", "unlock", "commit"
	)
)
