package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mjmember_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mjmember_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mjmember_messages_submitted_total",
			Help: "Total contact messages submitted",
		},
		[]string{"target_type"},
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mjmember_messages_marked_read_total",
			Help: "Total read markers recorded",
		},
	)

	InboxRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mjmember_inbox_requests_total",
			Help: "Total aggregated inbox computations",
		},
	)

	// Aggregator metrics
	TargetQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mjmember_target_queries_total",
			Help: "Target queries issued by the inbox aggregator",
		},
		[]string{"target_type", "result"}, // result: "ok" or "error"
	)

	TargetQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mjmember_target_query_duration_seconds",
			Help:    "Latency of a single target query",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1},
		},
	)

	UnreadCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mjmember_unread_cache_lookups_total",
			Help: "Unread count cache lookups",
		},
		[]string{"result"}, // "hit", "miss" or "error"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mjmember_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mjmember_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
