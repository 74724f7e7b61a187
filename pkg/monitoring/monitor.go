package monitoring

import (
	"strconv"
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

	// 进度子系统指标：按端点区分被接受/去重跳过/校验拒绝的样本数
	ProgressSamplesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_samples_applied_total",
			Help: "Number of progress samples merged into records",
		},
		[]string{"endpoint"},
	)

	ProgressSamplesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_samples_skipped_total",
			Help: "Number of batch samples dropped by per-lesson deduplication",
		},
	)

	ProgressSamplesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_samples_rejected_total",
			Help: "Number of progress samples rejected by validation",
		},
		[]string{"endpoint"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ProgressSamplesApplied)
	prometheus.MustRegister(ProgressSamplesSkipped)
	prometheus.MustRegister(ProgressSamplesRejected)
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
