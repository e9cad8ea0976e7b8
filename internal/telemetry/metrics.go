// Package telemetry exposes the core's Prometheus metrics and OpenTelemetry
// tracer, generalized from src/metrics/prometheus.go's HTTP/business metric
// split down to the operations this engine actually performs.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	AccountsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accounts_opened_total",
			Help: "Total number of accounts opened",
		},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "Total number of processed transfers",
		},
		[]string{"status"}, // completed, failed
	)

	TransferFailuresByKind = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_failures_total",
			Help: "Transfer failures by error kind",
		},
		[]string{"kind"},
	)

	OutboxPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Number of outbox events awaiting publish",
		},
	)

	OutboxPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox events successfully published",
		},
	)

	OutboxDeadLetteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_dead_lettered_total",
			Help: "Total number of outbox events routed to the dead-letter state",
		},
	)

	ReconciliationDriftGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reconciliation_accounts_by_status",
			Help: "Account count from the most recent reconciliation pass, by classification",
		},
		[]string{"status"}, // OK, DRIFT_COMPUTED, DRIFT_LATEST, CURRENCY_MISMATCH
	)

	OutboxPublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_errors_total",
			Help: "Outbox publish failures by reason",
		},
		[]string{"reason"},
	)
)

// RecordTransfer tags the outcome of ExecuteTransfer for dashboards and
// alerts; failureKind is empty for a completed transfer.
func RecordTransfer(status string, failureKind string) {
	TransfersTotal.WithLabelValues(status).Inc()
	if failureKind != "" {
		TransferFailuresByKind.WithLabelValues(failureKind).Inc()
	}
}
