package telemetry

import (
	"context"

	"github.com/vango-dev/bindery/pkg/bus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name.
const defaultTracerName = "bindery"

// TracingConfig configures the OpenTelemetry observer.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "bindery").
	TracerName string

	// Provider supplies the tracer (default: the global provider).
	Provider trace.TracerProvider

	// Context is the parent of top-level firing spans
	// (default: context.Background()).
	Context context.Context
}

// TracingOption configures the OpenTelemetry observer.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = tp
	}
}

// WithContext sets the parent context of top-level firing spans.
func WithContext(ctx context.Context) TracingOption {
	return func(c *TracingConfig) {
		c.Context = ctx
	}
}

// Tracing opens a span per firing. It implements bus.Observer.
//
// Like the bus it observes, Tracing is not safe for concurrent use.
type Tracing struct {
	tracer trace.Tracer
	base   context.Context

	// stack holds the contexts of the firings in progress, innermost last.
	stack []context.Context
}

// NewTracing creates the observer.
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	return &Tracing{
		tracer: config.Provider.Tracer(config.TracerName),
		base:   config.Context,
	}
}

// BeginFire implements bus.Observer.
func (t *Tracing) BeginFire(ev bus.Event, source any, depth int) func(bus.FireStats, error) {
	parent := t.base
	if n := len(t.stack); n > 0 {
		parent = t.stack[n-1]
	}

	attrs := []attribute.KeyValue{
		attribute.String("bindery.kind", ev.Kind().String()),
		attribute.Int("bindery.depth", depth),
	}
	if named, ok := source.(bus.Named); ok {
		attrs = append(attrs, attribute.String("bindery.source", named.Name()))
	}

	ctx, span := t.tracer.Start(parent, "bindery.fire "+ev.Kind().String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	t.stack = append(t.stack, ctx)

	return func(stats bus.FireStats, err error) {
		span.SetAttributes(
			attribute.Int("bindery.handlers.invoked", stats.Invoked),
			attribute.Int("bindery.handlers.failed", stats.Failures),
			attribute.Int("bindery.handlers.panicked", stats.Panics),
			attribute.Int("bindery.pending_removals", stats.Pending),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		t.stack = t.stack[:len(t.stack)-1]
	}
}

// SpanContext returns the context of the innermost firing in progress, or
// the base context when none is.
func (t *Tracing) SpanContext() context.Context {
	if n := len(t.stack); n > 0 {
		return t.stack[n-1]
	}
	return t.base
}
