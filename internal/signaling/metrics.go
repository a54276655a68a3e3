package signaling

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides observability for the signaling core. Exposed at
// /metrics via the standard Prometheus handler.
type Metrics struct {
	ActiveConnections    prometheus.Gauge
	MessagesTotal        *prometheus.CounterVec
	ForwardsTotal        *prometheus.CounterVec
	BroadcastsTotal      prometheus.Counter
	SendFailuresTotal    prometheus.Counter
	HandshakeRejections  *prometheus.CounterVec
	ChannelJoinsTotal    prometheus.Counter
	ChannelJoinRejected  prometheus.Counter
	CleanupFailuresTotal prometheus.Counter
}

// NewMetrics creates and registers the signaling metric set. Tests pass
// a fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signaling_active_connections",
			Help: "Number of live WebSocket connections on this instance.",
		}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaling_messages_total",
			Help: "Inbound signaling envelopes by type.",
		}, []string{"type"}),
		ForwardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaling_forwards_total",
			Help: "Point-to-point envelopes forwarded to a target, by type.",
		}, []string{"type"}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signaling_broadcasts_total",
			Help: "Channel-wide broadcast operations.",
		}),
		SendFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signaling_send_failures_total",
			Help: "Envelopes dropped because a client send buffer was unavailable.",
		}),
		HandshakeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaling_handshake_rejections_total",
			Help: "Rejected WebSocket handshakes by reason.",
		}, []string{"reason"}),
		ChannelJoinsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signaling_channel_joins_total",
			Help: "Successful channel joins.",
		}),
		ChannelJoinRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signaling_channel_join_rejections_total",
			Help: "Channel joins rejected because the channel was full.",
		}),
		CleanupFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signaling_cleanup_failures_total",
			Help: "Disconnect cleanup steps that failed against the shared store.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.MessagesTotal,
		m.ForwardsTotal,
		m.BroadcastsTotal,
		m.SendFailuresTotal,
		m.HandshakeRejections,
		m.ChannelJoinsTotal,
		m.ChannelJoinRejected,
		m.CleanupFailuresTotal,
	)

	return m
}
