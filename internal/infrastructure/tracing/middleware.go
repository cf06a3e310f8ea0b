package tracing

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPMiddleware opens one span per request. A caller's X-Trace-ID and
// X-Span-ID are continued, and the server's ids are echoed back.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if trace, parent := Extract(c.Request.Header); trace != "" {
			ctx = ContextWith(ctx, trace, parent)
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.Set(zap.String("client_ip", c.ClientIP()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
	}
}
