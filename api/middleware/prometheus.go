package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "service"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	feedMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_mutations_total",
			Help: "Total number of feed mutations processed",
		},
		[]string{"operation", "path", "status"},
	)

	feedMutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_mutation_duration_seconds",
			Help:    "Duration of feed mutation processing in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation", "path"},
	)

	wsSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_sessions",
			Help: "Number of connected websocket sessions",
		},
	)
)

func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
			serviceName,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			serviceName,
		).Observe(duration)
	}
}

// RecordFeedMutation counts one mutation attempt; path is "rest" or "ws".
func RecordFeedMutation(operation, path, status string, duration time.Duration) {
	feedMutationsTotal.WithLabelValues(operation, path, status).Inc()
	feedMutationDuration.WithLabelValues(operation, path).Observe(duration.Seconds())
}

func WSSessionOpened() {
	wsSessions.Inc()
}

func WSSessionClosed() {
	wsSessions.Dec()
}
