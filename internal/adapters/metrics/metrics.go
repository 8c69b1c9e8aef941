// Package metrics implements ports.Instrumentation with Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigil-run/vigil/internal/core/ports"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	alertsReceived      *prometheus.CounterVec
	alertsDeduplicated  prometheus.Counter
	escalationsFired    prometheus.Counter
	escalationsDrained  prometheus.Counter
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		alertsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_alerts_received_total",
			Help: "Alerts created from ingested payloads.",
		}, []string{"source"}),
		alertsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_alerts_deduplicated_total",
			Help: "Inbound alerts suppressed by fingerprint dedup.",
		}),
		escalationsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_escalations_fired_total",
			Help: "Escalation steps fired by the worker.",
		}),
		escalationsDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_escalations_exhausted_total",
			Help: "Escalations that ran out of steps and repeats.",
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_notifications_sent_total",
			Help: "Notifications delivered, by channel.",
		}, []string{"channel"}),
		notificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_notifications_failed_total",
			Help: "Notification delivery failures, by channel.",
		}, []string{"channel"}),
	}

	m.registry.MustRegister(
		m.alertsReceived,
		m.alertsDeduplicated,
		m.escalationsFired,
		m.escalationsDrained,
		m.notificationsSent,
		m.notificationsFailed,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AlertReceived(source string) { m.alertsReceived.WithLabelValues(source).Inc() }
func (m *Metrics) AlertDeduplicated()          { m.alertsDeduplicated.Inc() }
func (m *Metrics) EscalationFired()            { m.escalationsFired.Inc() }
func (m *Metrics) EscalationExhausted()        { m.escalationsDrained.Inc() }
func (m *Metrics) NotificationSent(channel string) {
	m.notificationsSent.WithLabelValues(channel).Inc()
}
func (m *Metrics) NotificationFailed(channel string) {
	m.notificationsFailed.WithLabelValues(channel).Inc()
}

var _ ports.Instrumentation = (*Metrics)(nil)
