// Package tracer holds the gin instrumentation middleware and short span helpers
// for controllers. Spans started here belong to the controller source unless the
// builder says otherwise.
package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
)

func builder(ctx context.Context, name string, attrs []any) *eto.TraceBuilder {
	b := eto.Trace().Name(name).FromContext(ctx)
	for i := 0; i+1 < len(attrs); i += 2 {
		if key, ok := attrs[i].(string); ok {
			b = b.Attr(key, attrs[i+1])
		}
	}
	return b
}

// Start starts an internal span; attrs are alternating key/value pairs.
//
//	ctx, end := tracer.Start(ctx, "operation-name", "key1", "value1")
//	defer end()
func Start(ctx context.Context, name string, attrs ...any) (context.Context, func()) {
	ctx, span := builder(ctx, name, attrs).Start()
	return ctx, func() { span.End() }
}

// Run executes fn within a span, recording its error on the span.
func Run(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...any) error {
	return builder(ctx, name, attrs).Run(fn)
}

// Attr builds a typed attribute from a scalar value.
func Attr(key string, val any) attribute.KeyValue {
	switch v := val.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
