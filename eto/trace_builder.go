package eto

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceBuilder starts spans fluently. Spans come from the first configured
// custom source unless Source says otherwise; sources outside the enabled
// set are recorded but never exported.
type TraceBuilder struct {
	name   string
	ctx    context.Context
	attrs  []attribute.KeyValue
	kind   trace.SpanKind
	source string
}

func Trace() *TraceBuilder {
	return &TraceBuilder{
		ctx:    context.Background(),
		kind:   trace.SpanKindInternal,
		source: globalCfg.controllerSource(),
	}
}

func (b *TraceBuilder) Name(name string) *TraceBuilder {
	b.name = name
	return b
}

func (b *TraceBuilder) FromContext(ctx context.Context) *TraceBuilder {
	if ctx != nil {
		b.ctx = ctx
	}
	return b
}

func (b *TraceBuilder) Kind(kind trace.SpanKind) *TraceBuilder {
	b.kind = kind
	return b
}

// Source selects the instrumentation source (tracer name) the span belongs to.
func (b *TraceBuilder) Source(name string) *TraceBuilder {
	if name != "" {
		b.source = name
	}
	return b
}

func (b *TraceBuilder) Attr(key string, val any) *TraceBuilder {
	b.attrs = append(b.attrs, anyToAttr(key, val))
	return b
}

func (b *TraceBuilder) Start() (context.Context, trace.Span) {
	if b.name == "" {
		b.name = "unnamed-span"
	}
	opts := []trace.SpanStartOption{trace.WithSpanKind(b.kind)}
	if len(b.attrs) > 0 {
		opts = append(opts, trace.WithAttributes(b.attrs...))
	}
	return otel.Tracer(b.source).Start(b.ctx, b.name, opts...)
}

// Run executes fn inside the span and marks the span failed when fn errors.
func (b *TraceBuilder) Run(fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("eto.Trace().Run: fn is nil")
	}

	ctx, span := b.Start()
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
