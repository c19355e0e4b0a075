package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each server instance
// carries its own registry so tests can start several servers in one process
// without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	activeSessions   prometheus.Gauge
	sessionsTotal    prometheus.Counter
	sessionsRemoved  prometheus.Counter
	framesReceived   *prometheus.CounterVec
	framesSent       *prometheus.CounterVec
	deliveries       prometheus.Counter
	deliveryFailures prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orzchat_active_sessions",
			Help: "Number of currently logged-in sessions.",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "orzchat_sessions_total",
			Help: "Total sessions created since start.",
		}),
		sessionsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "orzchat_sessions_removed_total",
			Help: "Total sessions removed since start.",
		}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orzchat_frames_received_total",
			Help: "Frames received from clients, by frame type.",
		}, []string{"type"}),
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orzchat_frames_sent_total",
			Help: "Frames queued toward clients, by frame type.",
		}, []string{"type"}),
		deliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "orzchat_deliveries_total",
			Help: "Messages fanned out to recipients.",
		}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "orzchat_delivery_failures_total",
			Help: "Fan-out deliveries dropped because the recipient was slow or gone.",
		}),
	}
}

func (m *Metrics) RecordActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) RecordSessionCreated() {
	m.sessionsTotal.Inc()
}

func (m *Metrics) RecordSessionRemoved() {
	m.sessionsRemoved.Inc()
}

func (m *Metrics) RecordFrameReceived(typeName string) {
	m.framesReceived.WithLabelValues(typeName).Inc()
}

func (m *Metrics) RecordFrameSent(typeName string) {
	m.framesSent.WithLabelValues(typeName).Inc()
}

func (m *Metrics) RecordDelivery() {
	m.deliveries.Inc()
}

func (m *Metrics) RecordDeliveryFailure() {
	m.deliveryFailures.Inc()
}

// Handler returns the HTTP handler serving this registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
