package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ServerSpanStarter starts a server span continuing any upstream trace in carrier.
type ServerSpanStarter interface {
	StartServerSpan(ctx context.Context, carrier propagation.TextMapCarrier, spanName string) (context.Context, trace.Span)
}

// HTTPMetrics records request level metrics.
type HTTPMetrics interface {
	ActiveRequestsInc()
	ActiveRequestsDec()
	ObserveRequest(method, path string, status int, duration time.Duration)
}

// Observability returns a Gin middleware that integrates Prometheus metrics and OpenTelemetry tracing.
// For each HTTP request it starts a server span and records request totals and duration,
// labeled with the method, the route template and the status code.
// Observability 返回一个集成了 Prometheus 指标和 OpenTelemetry 跟踪的 Gin 中间件。
func Observability(spans ServerSpanStarter, metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Use c.FullPath() for low-cardinality labels.
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}

		metrics.ActiveRequestsInc()
		defer metrics.ActiveRequestsDec()

		ctx, span := spans.StartServerSpan(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header), c.Request.Method+" "+path)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		metrics.ObserveRequest(c.Request.Method, path, status, time.Since(start))

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", path),
			attribute.Int("http.status_code", status),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}

//Personal.AI order the ending
