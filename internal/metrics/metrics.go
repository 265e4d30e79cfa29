package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sisyphus_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sisyphus_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TokenRefreshes counts successful refresh-token rotations.
	TokenRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sisyphus_token_refreshes_total",
		Help: "Successful refresh token rotations.",
	})

	// TokenReuseDetected counts refresh attempts with an already-spent
	// token, a possible replay signal.
	TokenReuseDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sisyphus_token_reuse_detected_total",
		Help: "Refresh attempts presenting an already-exchanged token.",
	})

	// TasksReset counts task completions revoked by the daily reset,
	// whether applied lazily at read time or by the sweep.
	TasksReset = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sisyphus_tasks_reset_total",
		Help: "Task completions revoked at day rollover.",
	})
)

var registerOnce sync.Once

// InitMetrics registers the collectors. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, TokenRefreshes, TokenReuseDetected, TasksReset)
	})
}

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
