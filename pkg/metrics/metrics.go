// Package metrics provides the Prometheus registry, the HTTP metrics and the
// /metrics handler of the pokedex service.
// Domain metrics are defined in their respective packages (pokeapi, cache,
// refresh, pokedex) to maintain modularity and avoid circular dependencies.
//
// This package also documents every metric the service exports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer exposes what Registry collects.
var Gatherer = prometheus.DefaultGatherer

var (
	// HTTPRequestDuration tracks HTTP request duration by method, route and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pokedex_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestsTotal tracks total HTTP requests by method, route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokedex_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// RefreshingResponses counts 503 answers carrying the refreshing marker.
	RefreshingResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokedex_http_refreshing_responses_total",
			Help: "Responses telling the client that a rebuild is in progress",
		},
		[]string{"route"},
	)
)

// unmatchedRoute labels requests that hit no route, keeping cardinality bounded.
const unmatchedRoute = "unmatched"

// GinMiddleware returns a Gin middleware that collects HTTP metrics.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		HTTPRequestDuration.WithLabelValues(method, route, statusCode).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	}
}

// Handler serves the collected metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Upstream Metrics (pkg/pokeapi):
//   - pokeapi_requests_total{endpoint, status} (Counter): Requests by endpoint template and HTTP status
//   - pokeapi_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint template
//   - pokeapi_errors_total{class} (Counter): Errors by class (not_found, client, server, rate_limit, network, decode)
//   - pokeapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - pokeapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - pokeapi_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - pokedex_cache_hits_total{layer} (Counter): Cache hits by backend (redis, memory)
//   - pokedex_cache_misses_total (Counter): Cache misses
//   - pokedex_cache_stale_served_total (Counter): Expired entries served while another holder rebuilds
//   - pokedex_cache_errors_total{operation} (Counter): Cache operation errors
//
// Refresh Metrics (pkg/refresh):
//   - pokedex_refresh_acquired_total (Counter): Leases granted
//   - pokedex_refresh_busy_total (Counter): Lease requests refused because a rebuild is in flight
//   - pokedex_refresh_released_total{result} (Counter): Releases by outcome (released, lost, error)
//   - pokedex_refresh_discarded_writes_total (Counter): Rebuild results dropped because the lease was lost
//
// Aggregator Metrics (pkg/pokedex):
//   - pokedex_results_total{kind, status} (Counter): Results by view (summary, detail, groupings, categories) and status
//   - pokedex_rebuilds_total{kind, result} (Counter): Rebuilds by view and outcome
//   - pokedex_rebuild_duration_seconds{kind} (Histogram): Rebuild duration by view
//
// HTTP Metrics (this package):
//   - pokedex_http_requests_total{method, route, status_code} (Counter)
//   - pokedex_http_request_duration_seconds{method, route, status_code} (Histogram)
//   - pokedex_http_refreshing_responses_total{route} (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pokedex_cache_hits_total[5m])) /
//   (sum(rate(pokedex_cache_hits_total[5m])) + sum(rate(pokedex_cache_misses_total[5m])))
//
//   # Stampede pressure: callers turned away while a rebuild runs
//   rate(pokedex_refresh_busy_total[5m])
//
//   # Upstream Error Rate
//   sum by (class) (rate(pokeapi_errors_total[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(pokeapi_request_duration_seconds_bucket[5m]))
