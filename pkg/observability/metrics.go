package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway
type Metrics struct {
	// Admission metrics
	AdmissionDecisionsTotal *prometheus.CounterVec

	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Relay metrics
	RelayRequestsTotal *prometheus.CounterVec
	RelayDuration      prometheus.Histogram

	// Export metrics
	ExportFetchDuration *prometheus.HistogramVec

	// Alert metrics
	AlertsSentTotal   prometheus.Counter
	AlertsFailedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AdmissionDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportgate_admission_decisions_total",
				Help: "Admission decisions by outcome and denial reason",
			},
			[]string{"outcome", "reason"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportgate_queries_total",
				Help: "Gateway queries by request kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reportgate_query_duration_seconds",
				Help:    "Gateway query handling duration by request kind",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		RelayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportgate_relay_requests_total",
				Help: "Context relay secondary hops by outcome",
			},
			[]string{"outcome"},
		),
		RelayDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reportgate_relay_duration_seconds",
				Help:    "Round-trip duration of relay secondary hops",
				Buckets: prometheus.DefBuckets,
			},
		),
		ExportFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reportgate_export_fetch_duration_seconds",
				Help:    "Duration of report fetches against the export engine",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		AlertsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reportgate_alerts_sent_total",
				Help: "Security alert notifications sent",
			},
		),
		AlertsFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reportgate_alerts_failed_total",
				Help: "Security alert notifications that failed to send",
			},
		),
	}

	registry.MustRegister(
		m.AdmissionDecisionsTotal,
		m.QueriesTotal,
		m.QueryDuration,
		m.RelayRequestsTotal,
		m.RelayDuration,
		m.ExportFetchDuration,
		m.AlertsSentTotal,
		m.AlertsFailedTotal,
	)

	return m
}

// ObserveQuery records one handled query.
func (m *Metrics) ObserveQuery(kind, outcome string, duration time.Duration) {
	m.QueriesTotal.WithLabelValues(kind, outcome).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveRelay records one relay round trip.
func (m *Metrics) ObserveRelay(outcome string, duration time.Duration) {
	m.RelayRequestsTotal.WithLabelValues(outcome).Inc()
	m.RelayDuration.Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
