package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	req := require.New(t)
	m := New(prometheus.NewRegistry())

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.SetOnline(3)
	m.MessageRouted("delivered")
	m.MessageRouted("delivered")
	m.MessageRouted("recipient-offline")
	m.PresenceTransition("online")
	m.UnidentifiedEvent()
	m.RateLimited()
	m.ObserverEventDropped()

	req.Equal(1.0, testutil.ToFloat64(m.connections))
	req.Equal(3.0, testutil.ToFloat64(m.online))
	req.Equal(2.0, testutil.ToFloat64(m.routed.WithLabelValues("delivered")))
	req.Equal(1.0, testutil.ToFloat64(m.routed.WithLabelValues("recipient-offline")))
	req.Equal(1.0, testutil.ToFloat64(m.transitions.WithLabelValues("online")))
	req.Equal(1.0, testutil.ToFloat64(m.unidentified))
	req.Equal(1.0, testutil.ToFloat64(m.rateLimited))
	req.Equal(1.0, testutil.ToFloat64(m.droppedEvents))
}

func TestMetrics_Nil_Is_Noop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.SetOnline(1)
		m.MessageRouted("delivered")
		m.PresenceTransition("offline")
		m.UnidentifiedEvent()
		m.RateLimited()
		m.ObserverEventDropped()
	})
}
