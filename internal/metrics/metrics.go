package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Socket metrics
	ActiveSockets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offchat_ws_active_sockets",
			Help: "Currently open WebSocket connections",
		},
	)

	Broadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offchat_ws_broadcasts_total",
			Help: "Total chat broadcasts",
		},
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offchat_ws_frames_sent_total",
			Help: "Total frames queued to sockets",
		},
		[]string{"type"},
	)

	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offchat_ws_evictions_total",
			Help: "Connections evicted after a failed send",
		},
	)

	// Business metrics
	MessagesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offchat_messages_ingested_total",
			Help: "Inbound send_message events by outcome",
		},
		[]string{"outcome"}, // delivered, dropped, rejected, failed
	)

	FriendNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offchat_friend_notifications_total",
			Help: "Friend system notifications delivered",
		},
		[]string{"type"},
	)
)
