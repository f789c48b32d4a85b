package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "order_reserve",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_reserve",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "order_reserve",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	relayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_reserve",
			Subsystem: "relay",
			Name:      "calls_total",
			Help:      "Chat relay calls by action and outcome.",
		},
		[]string{"action", "result"},
	)

	// Subscribers is the number of open realtime subscriptions.
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "order_reserve",
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Open change-feed subscriptions.",
		},
	)

	changeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_reserve",
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Change events fanned out, and dropped for slow subscribers.",
		},
		[]string{"table", "event_type", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		relayCalls,
		Subscribers,
		changeEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordRelay counts a relay call. result is "ok" or "error".
func RecordRelay(action, result string) {
	relayCalls.WithLabelValues(action, result).Inc()
}

// RecordChangeEvent counts a fanned-out change event; outcome is
// "delivered" or "dropped".
func RecordChangeEvent(table, eventType, outcome string) {
	changeEvents.WithLabelValues(table, eventType, outcome).Inc()
}
