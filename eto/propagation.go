package eto

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderTraceID = "X-Trace-Id"
	HeaderSpanID  = "X-Span-Id"
)

type PropagationBuilder struct {
	ctx       context.Context
	useLegacy bool
}

// Propagate starts a fluent builder for W3C trace context inject/extract.
func Propagate() *PropagationBuilder {
	return &PropagationBuilder{
		ctx: context.Background(),
	}
}

func (p *PropagationBuilder) FromContext(ctx context.Context) *PropagationBuilder {
	if ctx != nil {
		p.ctx = ctx
	}
	return p
}

// WithLegacyHeaders also writes X-Trace-Id / X-Span-Id on outbound requests.
func (p *PropagationBuilder) WithLegacyHeaders(enable bool) *PropagationBuilder {
	p.useLegacy = enable
	return p
}

func (p *PropagationBuilder) FromHTTPRequest(r *http.Request) context.Context {
	if globalPropagator == nil {
		return r.Context()
	}
	return globalPropagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func (p *PropagationBuilder) ToHTTPRequest(r *http.Request) {
	if globalPropagator == nil {
		return
	}
	globalPropagator.Inject(p.ctx, propagation.HeaderCarrier(r.Header))

	if p.useLegacy {
		setIDHeaders(p.ctx, r.Header)
	}
}

// ToHTTPResponse exposes the active trace and span ids to the caller.
func (p *PropagationBuilder) ToHTTPResponse(w http.ResponseWriter) {
	setIDHeaders(p.ctx, w.Header())
}

func setIDHeaders(ctx context.Context, h http.Header) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	h.Set(HeaderTraceID, sc.TraceID().String())
	h.Set(HeaderSpanID, sc.SpanID().String())
}
