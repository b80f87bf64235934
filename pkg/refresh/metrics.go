package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	leasesAcquired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_refresh_acquired_total",
		Help: "Total number of rebuild leases granted",
	})

	leasesBusy = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_refresh_busy_total",
		Help: "Total number of lease requests refused because another rebuild holds the lock",
	})

	leasesReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_refresh_released_total",
		Help: "Total number of lease releases by result",
	}, []string{"result"}) // "released", "lost", "error"

	discardedWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_refresh_discarded_writes_total",
		Help: "Total number of rebuild results discarded because the lease was lost",
	})
)
