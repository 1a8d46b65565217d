package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Latency buckets in seconds. Ledger writes hold row locks, so the upper
// buckets cover the lock timeout.
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

const (
	attrMethod    = attribute.Key("http.method")
	attrRoute     = attribute.Key("http.route")
	attrStatus    = attribute.Key("http.status_code")
	attrErrorCode = attribute.Key("error_code")
)

// HTTPMetrics counts requests per route pattern, status and ledger error code,
// and records latency and in-flight requests. A nil meter, or one that cannot
// create the instruments, yields a pass-through middleware.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	if meter == nil {
		return passThrough
	}
	requests, err := meter.Int64Counter("http_server_request_total",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return passThrough
	}
	latency, err := meter.Float64Histogram("http_server_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpDurationBuckets...))
	if err != nil {
		return passThrough
	}
	inFlight, err := meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests in progress"),
		metric.WithUnit("{request}"))
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		inFlight.Add(ctx, 1)
		defer inFlight.Add(ctx, -1)

		c.Next()

		route := attribute.NewSet(attrMethod.String(c.Request.Method), attrRoute.String(routePattern(c)))
		latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributeSet(route))

		attrs := append(route.ToSlice(), attrStatus.Int(c.Writer.Status()))
		if code := c.GetString(errorCodeKey); code != "" {
			attrs = append(attrs, attrErrorCode.String(code))
		}
		requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// routePattern labels by the matched pattern so ids never become label values.
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func passThrough(c *gin.Context) {
	c.Next()
}
