package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP request metrics for the API server
var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts the total number of HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)
)

// Allocation pipeline metrics. These surface edge cases that would otherwise
// pass silently: usage with no matching cost bucket, corrections clamped at
// zero, and undecodable usernames from the storage exporter.
var (
	// UsageRecordsDropped counts cost-factor records dropped during user-cost
	// distribution because no component cost existed for their (date,
	// component) key.
	UsageRecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_usage_records_dropped_total",
			Help: "Usage records dropped for lack of a matching component cost entry",
		},
	)

	// ComputeFloorClamps counts cost corrections that would have driven the
	// compute component negative and were floored at zero instead.
	ComputeFloorClamps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_compute_floor_clamps_total",
			Help: "Cost corrections clamped because they exceeded the compute bucket",
		},
	)

	// UnescapeFailures counts storage usage records skipped because their
	// filesystem-escaped username could not be decoded.
	UnescapeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_username_unescape_failures_total",
			Help: "Storage usage records skipped due to undecodable usernames",
		},
	)
)

// Query cache metrics
var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_cache_hits_total",
			Help: "Allocation query cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_cache_misses_total",
			Help: "Allocation query cache misses",
		},
	)
)
