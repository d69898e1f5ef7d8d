package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	appctx "sellerdesk/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

var tracer = otel.Tracer("sellerdesk/http")

var traceIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Trace assigns request and trace ids and opens the server span.
// A well-formed incoming X-Trace-ID is kept.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := appctx.NewTraceContext()
		if rid := c.GetHeader(HeaderRequestID); rid != "" && len(rid) <= 128 {
			tc.RequestID = rid
		}
		if tid := c.GetHeader(HeaderTraceID); traceIDPattern.MatchString(tid) {
			tc.TraceID = tid
		}

		ctx, span := tracer.Start(appctx.WithTrace(c.Request.Context(), tc), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request_id", tc.RequestID),
				attribute.String("app.trace_id", tc.TraceID),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Set("request_id", tc.RequestID)
		c.Set("trace_id", tc.TraceID)
		c.Header(HeaderRequestID, tc.RequestID)
		c.Header(HeaderTraceID, tc.TraceID)

		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}
