package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors the backend exports on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	CallsStarted    prometheus.Counter
	CallTransitions *prometheus.CounterVec
	CandidatesAdded *prometheus.CounterVec
	MessagesSent    prometheus.Counter
	WSConnections   prometheus.Gauge
	Subscriptions   prometheus.Gauge
	Uploads         *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CallsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumina_calls_started_total",
			Help: "Calls initiated",
		}),
		CallTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_call_transitions_total",
			Help: "Call status transitions by target status",
		}, []string{"status"}),
		CandidatesAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_call_candidates_total",
			Help: "ICE candidates written by role",
		}, []string{"role"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumina_messages_sent_total",
			Help: "Direct messages sent",
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lumina_ws_active_connections",
			Help: "Active websocket connections",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lumina_ws_active_subscriptions",
			Help: "Active live-query subscriptions",
		}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_uploads_total",
			Help: "Blob uploads by outcome",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(
		m.CallsStarted,
		m.CallTransitions,
		m.CandidatesAdded,
		m.MessagesSent,
		m.WSConnections,
		m.Subscriptions,
		m.Uploads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
