package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var callCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_gateway_calls_total",
	Help: "Number of platform API calls, by method and outcome",
}, []string{"method", "status"})

var callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "modbot_gateway_call_duration_seconds",
	Help:    "Latency of platform API calls, excluding pacing delay",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
}, []string{"method"})

var waitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "modbot_gateway_wait_duration_seconds",
	Help:    "Time spent waiting for the gateway slot",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
})

var throttledCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_gateway_throttled_total",
	Help: "Number of platform rate limit responses",
})
