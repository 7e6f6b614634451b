// Package observability holds the gateway's Prometheus collectors.
// Collectors register on the default registry; /metrics exposes them only when
// metrics are enabled in configuration.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "freeway"

// LatencyBuckets are histogram buckets for upstream calls, in seconds.
var LatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120}

var (
	// UpstreamRequests counts raw HTTP calls to providers by status code ("0" for transport failures).
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total HTTP requests sent to upstream providers",
		},
		[]string{"provider", "status_code"},
	)

	// UpstreamLatency tracks upstream HTTP call latency.
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream provider request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider"},
	)

	// ProviderAttempts counts orchestrator attempts per provider.
	// outcome is one of success, retry, abandon.
	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Completion attempts made by the fallback orchestrator",
		},
		[]string{"provider", "outcome"},
	)

	// OrchestratorResults counts fallback outcomes: free, paid, exhausted.
	OrchestratorResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrator_results_total",
			Help:      "Outcome of fallback dispatches",
		},
		[]string{"result"},
	)

	// ChatRequests counts chat requests by routing decision.
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat completion requests by route and success",
		},
		[]string{"route", "success"},
	)

	// ProviderScore exposes the current benchmark score per provider.
	ProviderScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_benchmark_score",
			Help:      "Current rolling benchmark score per provider",
		},
		[]string{"provider"},
	)

	// CachedModels exposes the number of cached OpenRouter models per tier.
	CachedModels = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_models",
			Help:      "Number of cached catalog models by tier",
		},
		[]string{"tier"},
	)

	// ProviderModels exposes the number of cached models per provider.
	ProviderModels = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_models",
			Help:      "Number of cached models per provider",
		},
		[]string{"provider"},
	)

	// ActiveProjects exposes the number of projects held by the authentication cache.
	ActiveProjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_projects",
			Help:      "Number of active projects in the authentication cache",
		},
	)

	// JobRuns counts background job executions.
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Background job runs by job and status",
		},
		[]string{"job", "status"},
	)

	// UsagePartialWriteFailures counts usage batches that were only partly persisted.
	UsagePartialWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_partial_write_failures_total",
			Help:      "Usage batches where some entries failed to persist",
		},
		[]string{"store"},
	)

	// UsageEntriesDropped counts usage entries dropped because the buffer was full.
	UsageEntriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_entries_dropped_total",
			Help:      "Usage entries dropped because the write buffer was full",
		},
	)
)

// RecordUpstream records one raw upstream HTTP call.
func RecordUpstream(provider string, statusCode int, elapsed time.Duration) {
	UpstreamRequests.WithLabelValues(provider, strconv.Itoa(statusCode)).Inc()
	UpstreamLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordJob records a background job run.
func RecordJob(job string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	JobRuns.WithLabelValues(job, status).Inc()
}
