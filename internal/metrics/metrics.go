// Package metrics exposes Prometheus collectors for the bot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nolofication_api_requests_total",
			Help: "Backend API calls by operation and HTTP status (0 = transport failure).",
		},
		[]string{"op", "status"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nolofication_api_request_duration_seconds",
			Help:    "Backend API call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	Updates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nolofication_telegram_updates_total",
			Help: "Telegram updates handled by kind.",
		},
		[]string{"kind"},
	)

	HookPayloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nolofication_hook_payloads_total",
			Help: "Webhook payloads received for relay, by result.",
		},
		[]string{"result"},
	)

	InboxDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nolofication_inbox_deliveries_total",
			Help: "Notifications relayed to chats by the inbox poller, by result.",
		},
		[]string{"result"},
	)
)

// ObserveAPI records one backend call.
func ObserveAPI(op string, status int, started time.Time) {
	APIRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	APILatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
