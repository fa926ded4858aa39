package eto

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// NewHTTPClient returns a client whose requests are traced as client spans
// (source HTTPClientSource) nested under the span in the request context.
// Outgoing requests carry the W3C trace context plus X-Trace-Id / X-Span-Id
// of the client span.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := otelhttp.NewTransport(legacyHeaders{next: http.DefaultTransport},
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Host)
		}),
	)
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// legacyHeaders runs inside the otelhttp transport, so the request context
// already holds the client span.
type legacyHeaders struct {
	next http.RoundTripper
}

func (t legacyHeaders) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	Propagate().FromContext(r.Context()).WithLegacyHeaders(true).ToHTTPRequest(r)
	return t.next.RoundTrip(r)
}
