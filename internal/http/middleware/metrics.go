// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// Prometheus collectors for the API. HTTP series are labelled by method,
// matched route and status; requests that match no route share the
// "unmatched" path label so scanners cannot blow up cardinality. Domain
// counters track shopping list renders, favorite/cart toggles, rate limit
// rejections and idempotent replays.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const unmatchedRoute = "unmatched"

var (
	httpReqs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	httpLat = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "Current number of in-flight HTTP requests.",
	})

	// Buckets reach a few MiB: recipe payloads embed base64 images and
	// shopping list PDFs embed a font.
	httpRespSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "Size of HTTP responses in bytes.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 9), // 256B..16MiB
	}, []string{"method", "path"})
)

var (
	shoppingListDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recipes",
		Name:      "shopping_list_downloads_total",
		Help:      "Shopping lists rendered for download, by format.",
	}, []string{"format"})

	// kind: favorite|shopping_cart, op: add|remove, result: ok|rejected.
	toggleOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recipes",
		Name:      "toggles_total",
		Help:      "Favorite and shopping cart toggle requests.",
	}, []string{"kind", "op", "result"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recipes",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by route.",
	}, []string{"path"})

	idempotentReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recipes",
		Name:      "idempotent_replays_total",
		Help:      "Create requests answered from a stored idempotency key.",
	}, []string{"path"})
)

// ObserveShoppingListDownload records one rendered shopping list.
func ObserveShoppingListDownload(format string) {
	shoppingListDownloads.WithLabelValues(format).Inc()
}

// ObserveToggle records one toggle request and whether it succeeded.
func ObserveToggle(kind, op string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	toggleOps.WithLabelValues(kind, op, result).Inc()
}

// metricsPath is routePath with unmatched requests folded together.
func metricsPath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

// Metrics instruments every request: count, latency, in-flight gauge and
// response size. Mount promhttp.Handler() on /metrics next to it.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := metricsPath(c)
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written (e.g. 204).
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
