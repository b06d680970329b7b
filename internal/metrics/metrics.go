package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the subsystem's Prometheus collectors.
type Metrics struct {
	ReadingsIngested prometheus.Counter
	ReadingsRejected *prometheus.CounterVec
	FindingsTotal    *prometheus.CounterVec
	EventsTotal      *prometheus.CounterVec
	AlertsTotal      *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
	BlockedTotal     prometheus.Counter
	ModelActive      prometheus.Gauge

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_readings_ingested_total",
			Help: "Sensor readings accepted and persisted",
		}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_readings_rejected_total",
			Help: "Sensor readings rejected before persistence",
		}, []string{"reason"}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_findings_total",
			Help: "Anomaly findings emitted by detectors",
		}, []string{"kind"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_security_events_total",
			Help: "Security events recorded",
		}, []string{"event_type", "severity"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_threat_alerts_total",
			Help: "Threat alerts derived from high and critical events",
		}, []string{"action_taken"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		}),
		BlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_blocked_requests_total",
			Help: "Requests rejected because the client is blocked",
		}),
		ModelActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_outlier_model_active",
			Help: "Whether the learned outlier model is trained and serving",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.ReadingsIngested,
		m.ReadingsRejected,
		m.FindingsTotal,
		m.EventsTotal,
		m.AlertsTotal,
		m.RateLimitedTotal,
		m.BlockedTotal,
		m.ModelActive,
		prometheus.NewGoCollector(),
	)

	return m
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
