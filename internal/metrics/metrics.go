package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devicewatch_http_requests_total",
		Help: "HTTP requests processed, by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devicewatch_http_request_duration_seconds",
		Help:    "HTTP request latency distribution.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	HeartbeatsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devicewatch_heartbeats_received_total",
		Help: "Heartbeats accepted for persistence.",
	})

	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devicewatch_alerts_triggered_total",
		Help: "Alert rules that transitioned into the triggered state.",
	})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devicewatch_websocket_connections",
		Help: "Currently open websocket connections.",
	})

	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devicewatch_broadcast_failures_total",
		Help: "Websocket sends that failed and evicted the connection.",
	})

	HealthScoreObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devicewatch_health_score",
		Help:    "Distribution of computed health scores.",
		Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})
)
