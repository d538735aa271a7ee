package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_requests_total",
		Help: "Total HTTP requests handled, labelled by method and status class.",
	}, []string{"method", "class"})

	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_request_duration_ms",
		Help:    "End-to-end request handling latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	RateLimitRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_ratelimit_rejected_total",
		Help: "Total requests rejected by the sliding-window rate limiter, labelled by quota kind.",
	}, []string{"kind"})

	RateLimitIdentifiers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_ratelimit_identifiers",
		Help: "Identifiers currently tracked by the rate limiter after the last sweep.",
	})

	EventLogFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_eventlog_fallback_total",
		Help: "Total durable log writes that fell back to process logging.",
	})

	EventLogAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_eventlog_alerts_total",
		Help: "Total alert webhook sends attempted for failed log writes.",
	})

	AuthRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_auth_rejections_total",
		Help: "Total authentication rejections, labelled by surface.",
	}, []string{"surface"})
)
