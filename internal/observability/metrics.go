package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	adminChatRequests    *prometheus.CounterVec
	adminChatLatency     *prometheus.HistogramVec
	chatHandshakeRejects *prometheus.CounterVec
	chatConnectionsTotal prometheus.Counter
	chatConnectionsLive  prometheus.Gauge
	chatRoomsActive      prometheus.Gauge
	chatMessagesSent     *prometheus.CounterVec
	chatEventErrors      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the chat core and its admin console.
func RegisterMetrics() {
	registerOnce.Do(func() {
		adminChatRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_chat_requests_total",
			Help: "Admin chat console requests, by route, conversation filter and status.",
		}, []string{"route", "list_type", "status"})

		adminChatLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_chat_request_duration_seconds",
			Help:    "Latency of admin chat console requests, by route and conversation filter.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"route", "list_type"})

		chatHandshakeRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_handshake_rejections_total",
			Help: "Chat websocket handshakes refused before upgrade, by status.",
		}, []string{"status"})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Total number of accepted chat websocket connections.",
		})

		chatConnectionsLive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of chat websocket connections currently open.",
		})

		chatRoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_rooms_active",
			Help: "Number of rooms with at least one connected member on this instance.",
		})

		chatMessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Chat messages fanned out, by origin (local or relay).",
		}, []string{"source"})

		chatEventErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_event_errors_total",
			Help: "Chat events answered with an error, by event and error kind.",
		}, []string{"event", "kind"})

		prometheus.MustRegister(
			adminChatRequests,
			adminChatLatency,
			chatHandshakeRejects,
			chatConnectionsTotal,
			chatConnectionsLive,
			chatRoomsActive,
			chatMessagesSent,
			chatEventErrors,
		)
	})
}

// AdminChatRequests counts admin chat console requests.
func AdminChatRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminChatRequests
}

// AdminChatLatency exposes the latency histogram of admin chat console requests.
func AdminChatLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminChatLatency
}

// ChatHandshakeRejections counts refused websocket handshakes.
func ChatHandshakeRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return chatHandshakeRejects
}

// ChatConnectionsTotal counts accepted websocket connections.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

// ChatConnectionsActive tracks currently open websocket connections.
func ChatConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return chatConnectionsLive
}

// ChatRoomsActive tracks rooms held in the presence table.
func ChatRoomsActive() prometheus.Gauge {
	RegisterMetrics()
	return chatRoomsActive
}

// ChatMessagesSent counts fanned-out messages.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSent
}

// ChatEventErrors counts error replies on the websocket.
func ChatEventErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return chatEventErrors
}
