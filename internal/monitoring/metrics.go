// Package monitoring registers and updates the process's Prometheus metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LogsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_logs_ingested_total",
			Help: "Total number of raw lines accepted into a batch",
		},
		[]string{"account_id"},
	)

	LogsDuplicateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_logs_duplicate_total",
			Help: "Total number of normalized logs rejected as duplicates",
		},
		[]string{"account_id"},
	)

	LogsParseErrorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_logs_parse_error_total",
			Help: "Total number of raw lines that failed normalization",
		},
		[]string{"account_id", "reason"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "siembackend_queue_depth",
			Help: "Current number of batches waiting in the ingest queue",
		},
	)

	BatchesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_batches_enqueued_total",
			Help: "Total number of batches accepted onto the ingest queue",
		},
		[]string{"account_id"},
	)

	BatchesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_batches_dropped_total",
			Help: "Total number of batches rejected because the queue was full",
		},
		[]string{"account_id"},
	)

	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_rule_evaluations_total",
			Help: "Total number of (log, rule) evaluations performed",
		},
		[]string{"rule_id"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"rule_id", "severity"},
	)

	EQLQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_eql_query_total",
			Help: "Total number of EQL queries executed",
		},
		[]string{"account_id"},
	)

	EQLQueryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_eql_query_errors_total",
			Help: "Total number of EQL queries that failed to parse or build",
		},
		[]string{"account_id", "stage"},
	)

	EQLQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siembackend_eql_query_duration_seconds",
			Help:    "EQL query execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"account_id"},
	)

	ContainmentBansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siembackend_containment_bans_total",
			Help: "Total number of (account_id, host_id) pairs placed under containment",
		},
		[]string{"account_id", "host_id"},
	)

	ContainmentActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "siembackend_containment_active",
			Help: "Whether a (account_id, host_id) pair is currently contained (1) or not (0)",
		},
		[]string{"account_id", "host_id"},
	)
)

// Metrics is a thin wrapper that makes every recording call a no-op when
// Prometheus reporting is disabled in configuration, instead of sprinkling
// an enabled check through every call site.
type Metrics struct {
	enabled bool
}

func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

func (m *Metrics) isEnabled() bool {
	return m.enabled
}

func (m *Metrics) RecordIngest(accountID string, lines int) {
	if !m.isEnabled() {
		return
	}
	LogsIngestedTotal.WithLabelValues(accountID).Add(float64(lines))
}

func (m *Metrics) RecordDuplicate(accountID string) {
	if !m.isEnabled() {
		return
	}
	LogsDuplicateTotal.WithLabelValues(accountID).Inc()
}

func (m *Metrics) RecordParseError(accountID, reason string) {
	if !m.isEnabled() {
		return
	}
	LogsParseErrorTotal.WithLabelValues(accountID, reason).Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	if !m.isEnabled() {
		return
	}
	QueueDepth.Set(float64(depth))
}

func (m *Metrics) RecordBatchEnqueued(accountID string) {
	if !m.isEnabled() {
		return
	}
	BatchesEnqueuedTotal.WithLabelValues(accountID).Inc()
}

func (m *Metrics) RecordBatchDropped(accountID string) {
	if !m.isEnabled() {
		return
	}
	BatchesDroppedTotal.WithLabelValues(accountID).Inc()
}

func (m *Metrics) RecordRuleEvaluation(ruleID string) {
	if !m.isEnabled() {
		return
	}
	RuleEvaluationsTotal.WithLabelValues(ruleID).Inc()
}

func (m *Metrics) RecordAlert(ruleID, severity string) {
	if !m.isEnabled() {
		return
	}
	AlertsTotal.WithLabelValues(ruleID, severity).Inc()
}

func (m *Metrics) RecordEQLQuery(accountID string, duration time.Duration) {
	if !m.isEnabled() {
		return
	}
	EQLQueryTotal.WithLabelValues(accountID).Inc()
	EQLQueryDuration.WithLabelValues(accountID).Observe(duration.Seconds())
}

func (m *Metrics) RecordEQLQueryError(accountID, stage string) {
	if !m.isEnabled() {
		return
	}
	EQLQueryErrorsTotal.WithLabelValues(accountID, stage).Inc()
}

func (m *Metrics) RecordContainmentBan(accountID, hostID string) {
	if !m.isEnabled() {
		return
	}
	ContainmentBansTotal.WithLabelValues(accountID, hostID).Inc()
	ContainmentActive.WithLabelValues(accountID, hostID).Set(1)
}

func (m *Metrics) RecordContainmentLifted(accountID, hostID string) {
	if !m.isEnabled() {
		return
	}
	ContainmentActive.WithLabelValues(accountID, hostID).Set(0)
}
