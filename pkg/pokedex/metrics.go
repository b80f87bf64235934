package pokedex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_results_total",
		Help: "Aggregator results by resource kind and status",
	}, []string{"kind", "status"}) // status: fresh, cached, stale, rebuilding, error

	rebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_rebuilds_total",
		Help: "Completed rebuilds by resource kind and result",
	}, []string{"kind", "result"}) // result: ok, discarded, not_found, permanent, transient

	rebuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokedex_rebuild_duration_seconds",
		Help:    "Rebuild duration in seconds by resource kind",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"kind"})
)
