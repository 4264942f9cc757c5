// Package metrics exposes prometheus instruments for the event bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Delivery results recorded per connection during a broadcast.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// Metrics holds every collector the service records. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ActiveConnections *prometheus.GaugeVec
	Broadcasts        prometheus.Counter
	Deliveries        *prometheus.CounterVec
	Ingested          *prometheus.CounterVec
	UpstreamRequests  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "active_connections",
			Help:      "Number of registered client streams.",
		}, []string{"type"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts attempted.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "deliveries_total",
			Help:      "Per-connection delivery attempts by result.",
		}, []string{"result"}),
		Ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "notifications_total",
			Help:      "Inbound notifications by source and normalization outcome.",
		}, []string{"source", "outcome"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Service invocation calls by app and result code.",
		}, []string{"app", "code"}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.Broadcasts,
		m.Deliveries,
		m.Ingested,
		m.UpstreamRequests,
	)
	return m
}

func (m *Metrics) ConnectionOpened(connType string) {
	if m == nil {
		return
	}
	m.ActiveConnections.WithLabelValues(connType).Inc()
}

func (m *Metrics) ConnectionClosed(connType string) {
	if m == nil {
		return
	}
	m.ActiveConnections.WithLabelValues(connType).Dec()
}

func (m *Metrics) BroadcastDone(delivered, failed int) {
	if m == nil {
		return
	}
	m.Broadcasts.Inc()
	m.Deliveries.WithLabelValues(ResultDelivered).Add(float64(delivered))
	m.Deliveries.WithLabelValues(ResultFailed).Add(float64(failed))
}

func (m *Metrics) NotificationIngested(source, outcome string) {
	if m == nil {
		return
	}
	m.Ingested.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) UpstreamRequest(app, code string) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(app, code).Inc()
}
