// Package metrics declares the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelbook_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})
	HTTPRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parcelbook_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"route"})
	NumbersAllocatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelbook_numbers_allocated_total",
		Help: "Display numbers computed by the allocator",
	}, []string{"prefix"})
	AllocationConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelbook_allocation_conflicts_total",
		Help: "Display number inserts rejected by the uniqueness constraint",
	}, []string{"prefix"})
	ParcelCacheEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelbook_parcel_cache_events_total",
		Help: "Parcel boundary cache events (hit, miss, fetch, fetch_error, stale)",
	}, []string{"event"})
	SkipTraceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelbook_skiptrace_requests_total",
		Help: "Skip-trace vendor lookups by provider and outcome",
	}, []string{"provider", "status"})
	SkipTraceDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parcelbook_skiptrace_duration_ms",
		Help:    "Skip-trace vendor call duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"provider"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDurationMs)
	prometheus.MustRegister(NumbersAllocatedTotal)
	prometheus.MustRegister(AllocationConflictsTotal)
	prometheus.MustRegister(ParcelCacheEventsTotal)
	prometheus.MustRegister(SkipTraceRequestsTotal)
	prometheus.MustRegister(SkipTraceDurationMs)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
