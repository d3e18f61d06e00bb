// Package metrics exposes Prometheus collectors for the relay. All methods
// are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatrelay"

// Metrics holds the relay collectors. A nil *Metrics records nothing.
type Metrics struct {
	connections   prometheus.Gauge
	online        prometheus.Gauge
	routed        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	unidentified  prometheus.Counter
	rateLimited   prometheus.Counter
	droppedEvents prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Number of open WebSocket connections.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities_online",
			Help:      "Number of identities with a registered connection.",
		}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Messages routed, by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_transitions_total",
			Help:      "Presence transitions, by resulting status.",
		}, []string{"status"}),
		unidentified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unidentified_events_total",
			Help:      "Events ignored because the connection had not identified.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_frames_total",
			Help:      "Inbound frames discarded by the per-connection rate limiter.",
		}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_events_dropped_total",
			Help:      "Presence events not handed to observers because the queue was full.",
		}),
	}

	reg.MustRegister(
		m.connections,
		m.online,
		m.routed,
		m.transitions,
		m.unidentified,
		m.rateLimited,
		m.droppedEvents,
	)
	return m
}

// ConnectionOpened counts an accepted websocket.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed counts a websocket leaving the hub.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// SetOnline sets the number of online identities.
func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}
	m.online.Set(float64(n))
}

// MessageRouted counts a routing outcome ("delivered", "recipient-offline", ...).
func (m *Metrics) MessageRouted(outcome string) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(outcome).Inc()
}

// PresenceTransition counts a transition to status.
func (m *Metrics) PresenceTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// UnidentifiedEvent counts an event ignored before identify.
func (m *Metrics) UnidentifiedEvent() {
	if m == nil {
		return
	}
	m.unidentified.Inc()
}

// RateLimited counts a frame discarded by the per-connection limiter.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// ObserverEventDropped counts a transition the notifier had no room for.
func (m *Metrics) ObserverEventDropped() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}
