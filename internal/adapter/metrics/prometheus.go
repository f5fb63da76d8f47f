// Package metrics exposes settlement and audit outcomes to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"driver-settlement-engine/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricSettlementsTotal          = "dse_settlements_total"
	MetricSettlementFailuresTotal   = "dse_settlement_failures_total"
	MetricSettlementDurationSeconds = "dse_settlement_duration_seconds"
	MetricAuditsTotal               = "dse_audits_total"
	MetricAuditDiscrepancy          = "dse_audit_discrepancy"
	MetricAlertDeliveriesTotal      = "dse_alert_deliveries_total"
)

// Recorder implements ports.MetricsRecorder on its own registry.
// Safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	settlements        *prometheus.CounterVec
	settlementFailures *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
	audits             *prometheus.CounterVec
	auditDiscrepancy   prometheus.Histogram
	alertDeliveries    *prometheus.CounterVec
}

// NewRecorder builds the collectors and registers them with a fresh registry.
// Go runtime and process collectors are registered alongside.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSettlementsTotal,
			Help: "Settlements returned to callers, by payment method and whether the result was a replay.",
		}, []string{"payment_method", "replay"}),
		settlementFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSettlementFailuresTotal,
			Help: "Settlement attempts that committed nothing.",
		}, []string{"payment_method"}),
		settlementDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricSettlementDurationSeconds,
			Help:    "Wall time of settle calls.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"payment_method"}),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAuditsTotal,
			Help: "Audit records written, by outcome.",
		}, []string{"outcome"}),
		auditDiscrepancy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricAuditDiscrepancy,
			Help:    "Absolute discrepancy between system and reconciled calculations, in currency units.",
			Buckets: []float64{0.01, 0.05, 0.5, 1, 5, 10, 50, 100},
		}),
		alertDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAlertDeliveriesTotal,
			Help: "Audit alert deliveries to the admin webhook.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		r.settlements,
		r.settlementFailures,
		r.settlementDuration,
		r.audits,
		r.auditDiscrepancy,
		r.alertDeliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) SettlementPosted(method domain.PaymentMethod, replay bool, elapsed time.Duration) {
	r.settlements.WithLabelValues(string(method), strconv.FormatBool(replay)).Inc()
	r.settlementDuration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

func (r *Recorder) SettlementFailed(method domain.PaymentMethod) {
	r.settlementFailures.WithLabelValues(string(method)).Inc()
}

// AuditRecorded classifies a record as matched, mismatch, alert or failed.
func (r *Recorder) AuditRecorded(record *domain.AuditRecord) {
	if record == nil {
		return
	}
	r.audits.WithLabelValues(auditOutcome(record)).Inc()
	if record.Verified {
		d, _ := record.Discrepancy.Float64()
		r.auditDiscrepancy.Observe(d)
	}
}

func (r *Recorder) AlertDelivered(ok bool) {
	result := "delivered"
	if !ok {
		result = "failed"
	}
	r.alertDeliveries.WithLabelValues(result).Inc()
}

func auditOutcome(record *domain.AuditRecord) string {
	switch {
	case !record.Verified:
		return "failed"
	case record.AlertAdmin:
		return "alert"
	case record.Matched:
		return "matched"
	default:
		return "mismatch"
	}
}
