package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "areametrics_requests_total",
		Help: "Total number of API requests",
	}, []string{"method", "route", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "areametrics_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"route"})
	StoreQueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "areametrics_store_query_duration_ms",
		Help:    "Row store call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"driver", "op"})
	StoreErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "areametrics_store_errors_total",
		Help: "Row store calls that failed with anything but no-rows",
	}, []string{"driver", "op"})
	ResolverLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "areametrics_resolver_lookups_total",
		Help: "Reference resolutions by level and matching rule",
	}, []string{"level", "rule"})
	ResolverCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "areametrics_resolver_cache_hits_total",
		Help: "Total redis cache hits for resolved references",
	})
	ResolverCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "areametrics_resolver_cache_misses_total",
		Help: "Total redis cache misses for resolved references",
	})
	RollupSamples = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "areametrics_rollup_areas",
		Help:    "Number of areas fanned out per rollup",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 1000},
	}, []string{"level"})
	SnapshotActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "areametrics_snapshot_actions_total",
		Help: "Acceleration snapshot refresh actions",
	}, []string{"action"})
	SnapshotReadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "areametrics_snapshot_reads_total",
		Help: "Latest-metric reads by source (snapshot or live)",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(StoreQueryDurationMs)
	prometheus.MustRegister(StoreErrorsTotal)
	prometheus.MustRegister(ResolverLookupsTotal)
	prometheus.MustRegister(ResolverCacheHitsTotal)
	prometheus.MustRegister(ResolverCacheMissesTotal)
	prometheus.MustRegister(RollupSamples)
	prometheus.MustRegister(SnapshotActionsTotal)
	prometheus.MustRegister(SnapshotReadsTotal)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
