package eto

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestHTTPClientNestsUnderCaller(t *testing.T) {
	exp := initForTest(t, DefaultConfig())

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(5 * time.Second)

	ctx, parent := Trace().Name("outbound").Start()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	parent.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	clientSpan, parentSpan := spans[0], spans[1]
	assert.Equal(t, HTTPClientSource, clientSpan.InstrumentationScope.Name)
	assert.Equal(t, trace.SpanKindClient, clientSpan.SpanKind)
	assert.Equal(t, parentSpan.SpanContext.SpanID(), clientSpan.Parent.SpanID())
	assert.Contains(t, got.Get("traceparent"), clientSpan.SpanContext.TraceID().String())
	assert.Equal(t, clientSpan.SpanContext.TraceID().String(), got.Get(HeaderTraceID))
	assert.Equal(t, clientSpan.SpanContext.SpanID().String(), got.Get(HeaderSpanID))
	assert.Empty(t, req.Header.Get(HeaderTraceID), "caller's request is not modified")
}

func TestPropagationRoundTrip(t *testing.T) {
	initForTest(t, DefaultConfig())

	ctx, span := Trace().Name("caller").Start()
	defer span.End()

	out := httptest.NewRequest(http.MethodGet, "/", nil)
	Propagate().FromContext(ctx).WithLegacyHeaders(true).ToHTTPRequest(out)
	assert.NotEmpty(t, out.Header.Get("traceparent"))
	assert.Equal(t, span.SpanContext().TraceID().String(), out.Header.Get(HeaderTraceID))

	extracted := Propagate().FromHTTPRequest(out)
	sc := trace.SpanContextFromContext(extracted)
	assert.True(t, sc.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), sc.TraceID())

	rec := httptest.NewRecorder()
	Propagate().FromContext(context.Background()).ToHTTPResponse(rec)
	assert.Empty(t, rec.Header().Get(HeaderTraceID))
}
