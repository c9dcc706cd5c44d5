package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daclify",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"group", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "daclify",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"group", "method", "path", "status"},
	)
	governanceOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daclify",
			Subsystem: "governance",
			Name:      "operations_total",
			Help:      "Governance operations by outcome.",
		},
		[]string{"group", "op", "outcome"},
	)
	governanceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "daclify",
			Subsystem: "governance",
			Name:      "operation_duration_seconds",
			Help:      "Governance operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"group", "op", "outcome"},
	)
	proposalsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daclify",
			Subsystem: "proposals",
			Name:      "settled_total",
			Help:      "Proposals settled per archive scope.",
		},
		[]string{"group", "scope"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, governanceOps, governanceDuration, proposalsSettled)
	})
}

func RecordHTTPRequest(group, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(group, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(group, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordGovernanceOp(group, op, outcome string, duration time.Duration) {
	RegisterMetrics()
	governanceOps.WithLabelValues(group, op, outcome).Inc()
	governanceDuration.WithLabelValues(group, op, outcome).Observe(duration.Seconds())
}

func RecordProposalSettled(group, scope string) {
	RegisterMetrics()
	proposalsSettled.WithLabelValues(group, scope).Inc()
}
