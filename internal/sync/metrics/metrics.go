package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts reconciliation cycles by outcome
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsync_cycles_total",
			Help: "Total number of reconciliation cycles",
		},
		[]string{"outcome"},
	)

	// CycleDuration tracks wall time per cycle
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketsync_cycle_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// OffersProcessed counts offers per cycle result
	OffersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsync_offers_processed_total",
			Help: "Total offers processed, labelled by result",
		},
		[]string{"result"},
	)

	// CategoriesResolved counts category resolution attempts
	CategoriesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsync_categories_resolved_total",
			Help: "Total category resolution attempts",
		},
		[]string{"outcome"},
	)

	// APICallsTotal tracks outbound marketplace calls
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsync_api_calls_total",
			Help: "Total outbound marketplace API calls",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRetriesTotal tracks 429-triggered retries
	APIRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketsync_api_retries_total",
			Help: "Total retries caused by rate limiting",
		},
	)

	// APILatency tracks marketplace call latency
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketsync_api_latency_seconds",
			Help:    "Marketplace API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ChunkedQueriesTotal counts chunked batch loads by table
	ChunkedQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsync_chunked_queries_total",
			Help: "Total chunked satellite-row queries",
		},
		[]string{"table"},
	)

	// FailedQueueDepth tracks entries awaiting retry in the failure queue
	FailedQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketsync_failed_queue_depth",
			Help: "Offers currently parked in the failure queue",
		},
	)
)
