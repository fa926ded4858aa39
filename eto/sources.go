package eto

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// WebFrameworkSource is the tracer name of the gin instrumentation middleware.
	WebFrameworkSource = "gin-otel"
	// HTTPClientSource is the tracer name of the outbound HTTP client instrumentation.
	HTTPClientSource = otelhttp.ScopeName
)

// sourceFilter forwards only spans whose instrumentation scope is in the enabled set.
type sourceFilter struct {
	next    sdktrace.SpanProcessor
	enabled map[string]struct{}
}

func newSourceFilter(next sdktrace.SpanProcessor, sources []string) *sourceFilter {
	enabled := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		enabled[s] = struct{}{}
	}
	return &sourceFilter{next: next, enabled: enabled}
}

func (f *sourceFilter) allowed(name string) bool {
	_, ok := f.enabled[name]
	return ok
}

func (f *sourceFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	if f.allowed(s.InstrumentationScope().Name) {
		f.next.OnStart(parent, s)
	}
}

func (f *sourceFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	if f.allowed(s.InstrumentationScope().Name) {
		f.next.OnEnd(s)
	}
}

func (f *sourceFilter) Shutdown(ctx context.Context) error   { return f.next.Shutdown(ctx) }
func (f *sourceFilter) ForceFlush(ctx context.Context) error { return f.next.ForceFlush(ctx) }
