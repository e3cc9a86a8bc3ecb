// Package metrics exposes Prometheus counters and gauges for the relay
// daemon: query pool occupancy, cache hit/miss, ID-pool exhaustion, and
// upstream timeouts. The spec's Non-goals don't mention metrics, but
// ambient observability is carried regardless of feature-level non-goals.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nodns_cache_lookups_total", Help: "Cache lookups by outcome"},
		[]string{"outcome"}, // hit_lru, hit_map, miss
	)
	QueryPoolOccupancy = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "nodns_querypool_occupancy", Help: "In-flight query pool slots in use"},
	)
	QueryPoolDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "nodns_querypool_dropped_total", Help: "Queries dropped because the query pool was full"},
	)
	IDPoolExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "nodns_idpool_exhausted_total", Help: "Upstream dispatch attempts that found the ID pool full"},
	)
	UpstreamTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "nodns_upstream_timeouts_total", Help: "Upstream queries that hit the 5-second timeout"},
	)
)

func init() {
	prometheus.MustRegister(CacheLookups, QueryPoolOccupancy, QueryPoolDropped, IDPoolExhausted, UpstreamTimeouts)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
