package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	IMOnlineConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "im_online_connections",
			Help: "Number of websocket connections held by this instance",
		},
	)

	IMMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "im_messages_total",
			Help: "Chat frames by type and direction",
		},
		[]string{"type", "direction"},
	)

	QuizAttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_total",
			Help: "Graded quiz attempts",
		},
		[]string{"passed"},
	)

	ProgressComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "progress_compute_seconds",
			Help:    "Time spent aggregating a course progress snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(IMOnlineConnections)
		prometheus.MustRegister(IMMessageCounter)
		prometheus.MustRegister(QuizAttemptCounter)
		prometheus.MustRegister(ProgressComputeDuration)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
