package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit pipeline.
type Metrics struct {
	Submitted           prometheus.Counter
	ValidationRejected  prometheus.Counter
	ContinuityConflicts prometheus.Counter
	CommitFailures      prometheus.Counter
	ArchiveFailures     prometheus.Counter
	SIEMFailures        prometheus.Counter
	SIEMBreakerDropped  prometheus.Counter
	FanoutDropped       prometheus.Counter
	FanoutQueueDepth    prometheus.Gauge
	VerifyRuns          prometheus.Counter
	VerifyFailures      prometheus.Counter
	SubmitDuration      prometheus.Histogram
}

// New creates and registers all audit pipeline metrics.
func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_events_submitted_total",
			Help: "Total number of audit events durably committed to the chain",
		}),
		ValidationRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_submissions_rejected_total",
			Help: "Total number of submissions rejected by validation before any side effects",
		}),
		ContinuityConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_chain_continuity_conflicts_total",
			Help: "Total number of compare-and-append conflicts between concurrent writers",
		}),
		CommitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_commit_failures_total",
			Help: "Total number of failed primary store commits",
		}),
		ArchiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_archive_failures_total",
			Help: "Total number of failed archival mirror writes",
		}),
		SIEMFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_siem_delivery_failures_total",
			Help: "Total number of failed SIEM deliveries",
		}),
		SIEMBreakerDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_siem_breaker_dropped_total",
			Help: "Total number of SIEM deliveries skipped because the circuit breaker was open",
		}),
		FanoutDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_fanout_dropped_total",
			Help: "Total number of events dropped from the fan-out buffer under backpressure",
		}),
		FanoutQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "veritas_audit_fanout_queue_depth",
			Help: "Current number of committed events waiting for archive/SIEM fan-out",
		}),
		VerifyRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_verify_runs_total",
			Help: "Total number of chain verification runs",
		}),
		VerifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_audit_verify_failures_total",
			Help: "Total number of verification runs that found a broken chain",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritas_audit_submit_duration_seconds",
			Help:    "Latency of the submit path, including the durable commit",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
