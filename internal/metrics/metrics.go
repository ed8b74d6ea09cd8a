// Package metrics holds wordbot's Prometheus collectors on a private
// registry so tests and multiple servers never collide on the default one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the webhook and registrar update.
type Metrics struct {
	registry *prometheus.Registry

	interactions         *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	registrationAttempts *prometheus.CounterVec
	registrationStatus   *prometheus.GaugeVec
	auditFailures        prometheus.Counter
}

// New registers every collector on a fresh registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		interactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordbot_interactions_total",
				Help: "Total number of webhook requests by interaction kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wordbot_request_duration_seconds",
				Help:    "Webhook request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		registrationAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordbot_registration_attempts_total",
				Help: "Total number of interactions endpoint registration attempts by result",
			},
			[]string{"result"},
		),
		registrationStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wordbot_registration_status",
				Help: "Current endpoint registration status (1 for the active status)",
			},
			[]string{"status"},
		),
		auditFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wordbot_audit_write_failures_total",
				Help: "Total number of audit records that could not be written",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveInteraction records one finished webhook request.
func (m *Metrics) ObserveInteraction(kind, outcome, status string, d time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.interactions.WithLabelValues(kind, outcome).Inc()
	m.requestDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RegistrationAttempt counts one endpoint registration call.
func (m *Metrics) RegistrationAttempt(result string) {
	if m == nil {
		return
	}
	m.registrationAttempts.WithLabelValues(result).Inc()
}

// SetRegistrationStatus marks status as the active one.
func (m *Metrics) SetRegistrationStatus(active string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		m.registrationStatus.WithLabelValues(s).Set(0)
	}
	m.registrationStatus.WithLabelValues(active).Set(1)
}

// AuditFailure counts a failed audit write.
func (m *Metrics) AuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}
