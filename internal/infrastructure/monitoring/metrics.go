package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/pkg/constants"
)

var _ service.Metrics = (*Metrics)(nil)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	AdmissionDecisions   *prometheus.CounterVec
	AdmissionLatency     *prometheus.HistogramVec
	StoreErrors          *prometheus.CounterVec
	AuditPublishFailures prometheus.Counter
	HTTPRequests         *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// NewMetrics creates the Prometheus metrics and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AdmissionDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotagate_admission_decisions_total",
				Help: "Total number of admission decisions by outcome.",
			},
			[]string{"action", "key_type", "outcome"},
		),
		AdmissionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotagate_admission_check_seconds",
				Help:    "Latency of single-key admission checks.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotagate_store_errors_total",
				Help: "Total number of counter store failures by kind.",
			},
			[]string{"kind"},
		),
		AuditPublishFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "quotagate_audit_publish_failures_total",
				Help: "Total number of denial events that could not be published.",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotagate_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotagate_http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quotagate_http_requests_in_flight",
				Help: "Number of HTTP requests being served.",
			},
		),
	}
}

// RecordDecision records one admission decision.
func (m *Metrics) RecordDecision(action constants.ActionCategory, keyType constants.KeyType, outcome constants.Outcome, duration time.Duration) {
	m.AdmissionDecisions.WithLabelValues(string(action), string(keyType), string(outcome)).Inc()
	m.AdmissionLatency.WithLabelValues(string(action)).Observe(duration.Seconds())
}

// RecordStoreError records a counter store failure.
func (m *Metrics) RecordStoreError(kind string) {
	m.StoreErrors.WithLabelValues(kind).Inc()
}

// RecordAuditFailure records a denial event that was dropped.
func (m *Metrics) RecordAuditFailure() {
	m.AuditPublishFailures.Inc()
}

func (m *Metrics) ActiveRequestsInc() { m.HTTPRequestsInFlight.Inc() }
func (m *Metrics) ActiveRequestsDec() { m.HTTPRequestsInFlight.Dec() }

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

//Personal.AI order the ending
