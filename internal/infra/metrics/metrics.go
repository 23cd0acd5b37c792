package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks logical transport calls by final outcome
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftfetch_requests_total",
			Help: "Total number of transport calls by outcome",
		},
		[]string{"method", "outcome"},
	)

	// HTTPAttemptsTotal tracks individual HTTP attempts including retries
	HTTPAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftfetch_http_attempts_total",
			Help: "Total number of HTTP attempts",
		},
		[]string{"method", "status"},
	)

	// HTTPLatency tracks HTTP attempt latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiftfetch_http_latency_seconds",
			Help:    "HTTP attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RetriesTotal tracks retries by failure label
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftfetch_retries_total",
			Help: "Total number of retried attempts",
		},
		[]string{"error"},
	)

	// ErrorCacheHits tracks calls answered from the error cache
	ErrorCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftfetch_error_cache_hits_total",
			Help: "Total number of calls short-circuited by the error cache",
		},
	)

	// ErrorCacheSize tracks the number of cached failures
	ErrorCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shiftfetch_error_cache_size",
			Help: "Number of entries in the error cache",
		},
	)

	// TokenRefreshTotal tracks refresh flights by result
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftfetch_token_refresh_total",
			Help: "Total number of token refresh outcomes",
		},
		[]string{"result"},
	)

	// SessionLogoutsTotal tracks forced logouts
	SessionLogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftfetch_session_logouts_total",
			Help: "Total number of forced session teardowns",
		},
	)
)
