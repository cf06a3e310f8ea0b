/*
Package tracing provides lightweight request tracing.

Each HTTP request gets a span, and handlers open child spans for the work they
do (an action, a file archive). Finished spans are logged through zap by a
single collector goroutine; there is no exporter. Failed spans log at error
level, 5xx spans at warn, the rest at debug.

# Usage

	tracer := tracing.New("runtime", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "action.run")
	defer span.End()
	span.Set(zap.String("mode", "sync"))

# Propagation

X-Trace-ID carries the trace across hops, X-Span-ID the calling span. The
CLI client injects both, so one trace covers the CLI call and the server work.
*/
package tracing
