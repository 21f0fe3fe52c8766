// internal/messaging/metrics.go

package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_messages_sent_total",
		Help: "Total number of messages sent, by message type",
	}, []string{"type"})

	notificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_notification_failures_total",
		Help: "Total number of failed notification dispatches",
	})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_websocket_connections",
		Help: "Number of currently connected websocket clients",
	})
)

// RecordMessageSent increments the sent-message counter
func RecordMessageSent(msgType string) {
	messagesSent.WithLabelValues(msgType).Inc()
}

// RecordNotificationFailure increments the failed-dispatch counter
func RecordNotificationFailure() {
	notificationFailures.Inc()
}

// RecordClientConnected tracks a websocket client attaching to the hub
func RecordClientConnected() {
	websocketConnections.Inc()
}

// RecordClientDisconnected tracks a websocket client leaving the hub
func RecordClientDisconnected() {
	websocketConnections.Dec()
}
