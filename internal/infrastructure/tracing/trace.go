package tracing

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/shared/id"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// spanBuffer bounds spans waiting for the collector
const spanBuffer = 1024

// TraceID identifies one request across the CLI and the server
type TraceID string

// SpanID identifies one operation inside a trace
type SpanID string

// Span is one timed operation. End submits it to its tracer.
type Span struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Name     string
	Start    time.Time
	Duration time.Duration
	Status   int
	Err      error

	attrs  []zap.Field
	tracer *Tracer
	ended  atomic.Bool
}

// Set attaches attributes that are logged with the span
func (s *Span) Set(fields ...zap.Field) {
	s.attrs = append(s.attrs, fields...)
}

// SetStatus records the HTTP status the operation answered with
func (s *Span) SetStatus(code int) {
	s.Status = code
}

// SetError marks the span as failed
func (s *Span) SetError(err error) {
	s.Err = err
}

// End stops the clock and hands the span to the collector. Later calls do
// nothing.
func (s *Span) End() {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	s.Duration = time.Since(s.Start)
	s.tracer.submit(s)
}

// Tracer logs finished spans through zap from a single collector goroutine
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// New starts a tracer. A nil logger discards spans.
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, spanBuffer),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan opens a span, continuing the trace carried by ctx if any
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, parentID := FromContext(ctx)
	if traceID == "" {
		traceID = TraceID(id.NewTraceID())
	}
	span := &Span{
		TraceID:  traceID,
		SpanID:   SpanID(id.NewSpanID()),
		ParentID: parentID,
		Name:     name,
		Start:    time.Now(),
		tracer:   t,
	}
	return span, ContextWith(ctx, traceID, span.SpanID)
}

// Dropped counts spans lost to a full buffer
func (t *Tracer) Dropped() int64 {
	return t.dropped.Load()
}

func (t *Tracer) submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}

	select {
	case t.spans <- span:
	default:
		if t.dropped.Add(1) == 1 {
			t.logger.Warn("span buffer full, dropping spans")
		}
	}
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.log(span)
	}
}

func (t *Tracer) log(span *Span) {
	fields := make([]zap.Field, 0, 7+len(span.attrs))
	fields = append(fields,
		zap.String("service", t.service),
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
	)
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.Status != 0 {
		fields = append(fields, zap.Int("status", span.Status))
	}
	fields = append(fields, span.attrs...)

	switch {
	case span.Err != nil:
		t.logger.Error("span failed", append(fields, zap.Error(span.Err))...)
	case span.Status >= http.StatusInternalServerError:
		t.logger.Warn("span completed", fields...)
	default:
		t.logger.Debug("span completed", fields...)
	}
}

// Close logs buffered spans and stops the collector
func (t *Tracer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.spans)
	t.mu.Unlock()
	<-t.done
}

type spanContext struct {
	trace TraceID
	span  SpanID
}

type contextKey struct{}

// ContextWith returns ctx carrying the given trace position
func ContextWith(ctx context.Context, trace TraceID, span SpanID) context.Context {
	return context.WithValue(ctx, contextKey{}, spanContext{trace: trace, span: span})
}

// FromContext returns the trace and current span of ctx, or empty values
func FromContext(ctx context.Context) (TraceID, SpanID) {
	sc, _ := ctx.Value(contextKey{}).(spanContext)
	return sc.trace, sc.span
}

// Inject writes the trace position of ctx into h
func Inject(ctx context.Context, h http.Header) {
	trace, span := FromContext(ctx)
	if trace != "" {
		h.Set(HeaderTraceID, string(trace))
	}
	if span != "" {
		h.Set(HeaderSpanID, string(span))
	}
}

// Extract reads a trace position sent by a caller
func Extract(h http.Header) (TraceID, SpanID) {
	return TraceID(h.Get(HeaderTraceID)), SpanID(h.Get(HeaderSpanID))
}
