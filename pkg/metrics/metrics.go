// Package metrics provides Prometheus metrics for the contacts engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RepairRunsTotal tracks repair runs by mode and outcome
	RepairRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "repair",
			Name:      "runs_total",
			Help:      "Total number of repair runs by mode and outcome",
		},
		[]string{"organization_id", "mode", "outcome"},
	)

	// RepairRunDuration tracks repair run duration in seconds
	RepairRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contacts",
			Subsystem: "repair",
			Name:      "run_duration_seconds",
			Help:      "Duration of repair runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	// RepairWritesTotal tracks committed repair writes
	RepairWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "repair",
			Name:      "writes_total",
			Help:      "Total number of writes committed by repair runs",
		},
		[]string{"collection", "kind"},
	)

	// RepairBatchFailuresTotal tracks batches rolled back during repair
	RepairBatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "repair",
			Name:      "batch_failures_total",
			Help:      "Total number of write batches that failed and were rolled back",
		},
		[]string{"organization_id"},
	)

	// RepairSkippedTotal tracks legacy records skipped by kind
	RepairSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "repair",
			Name:      "skipped_total",
			Help:      "Total number of legacy records skipped by reason",
		},
		[]string{"reason"},
	)

	// AuditIssues holds the issue counts of the last audit per organization
	AuditIssues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "contacts",
			Subsystem: "audit",
			Name:      "issues",
			Help:      "Number of consistency issues found by the last audit",
		},
		[]string{"organization_id", "type"},
	)

	// AuditDuration tracks audit scan duration
	AuditDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "contacts",
			Subsystem: "audit",
			Name:      "duration_seconds",
			Help:      "Duration of audit scans in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contacts",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// StatisticsCacheRequests tracks statistics cache lookups
	StatisticsCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "query",
			Name:      "statistics_cache_requests_total",
			Help:      "Statistics cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordRepairRun records a repair run metric
func RecordRepairRun(organizationID, mode, outcome string, durationSeconds float64) {
	RepairRunsTotal.WithLabelValues(organizationID, mode, outcome).Inc()
	RepairRunDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordRepairWrite records a committed repair write
func RecordRepairWrite(collection, kind string) {
	RepairWritesTotal.WithLabelValues(collection, kind).Inc()
}

// RecordBatchFailure records a rolled back batch
func RecordBatchFailure(organizationID string) {
	RepairBatchFailuresTotal.WithLabelValues(organizationID).Inc()
}

// RecordSkipped records a skipped legacy record
func RecordSkipped(reason string) {
	RepairSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordAudit publishes the issue counts of an audit
func RecordAudit(organizationID string, issuesByType map[string]int, durationSeconds float64) {
	for issueType, count := range issuesByType {
		AuditIssues.WithLabelValues(organizationID, issueType).Set(float64(count))
	}
	AuditDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an inbound HTTP request metric
func RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordStatisticsCache records a statistics cache lookup: hit, miss or error
func RecordStatisticsCache(result string) {
	StatisticsCacheRequests.WithLabelValues(result).Inc()
}
