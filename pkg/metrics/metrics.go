package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "erpcore"

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Connection registry metrics
	ResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_registry_resolve_total",
			Help: "Tenant resolutions by result (hit, miss, error)",
		},
		[]string{"result"},
	)
	HandlesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_registry_handles_created_total",
			Help: "Database handles opened by the connection registry",
		},
	)

	// Sequence metrics
	SequencesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_sequences_issued_total",
			Help: "Sequence numbers issued by scope type",
		},
		[]string{"scope_type"},
	)

	// Stock movement metrics
	MovementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_stock_movements_total",
			Help: "Stock movements by direction and result",
		},
		[]string{"direction", "result"},
	)
)
