package tracer

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
)

// HeaderRequestID carries the caller's request id; one is generated when absent.
const HeaderRequestID = "X-Request-Id"

// MiddlewareOption is a function that configures MiddlewareConfig.
type MiddlewareOption func(*MiddlewareConfig)

// MiddlewareConfig holds configuration for the Gin middleware.
type MiddlewareConfig struct {
	// ServiceName is added to metric attributes when set.
	ServiceName string

	// RouteResolver returns the matched route template once the pipeline ran,
	// or "" when the request never reached routing.
	RouteResolver func(c *gin.Context) string

	// EnableMetrics records http_requests_total, http_request_duration_ms and
	// http_response_size_bytes.
	EnableMetrics bool

	// Skip lets a request through untraced, e.g. one already re-executed
	// inside a traced request.
	Skip func(c *gin.Context) bool

	// TrustedProxies may report the original scheme via X-Forwarded-Proto.
	TrustedProxies TrustedProxies
}

func WithServiceName(name string) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.ServiceName = name
	}
}

func WithRouteResolver(fn func(c *gin.Context) string) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.RouteResolver = fn
	}
}

func WithMetrics(enable bool) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.EnableMetrics = enable
	}
}

func WithSkipper(fn func(c *gin.Context) bool) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.Skip = fn
	}
}

func WithTrustedProxies(proxies TrustedProxies) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.TrustedProxies = proxies
	}
}

func defaultConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		EnableMetrics: true,
		RouteResolver: func(c *gin.Context) string { return c.FullPath() },
	}
}

// spanName is "METHOD route", with the raw path until routing resolved one.
func spanName(method, route string) string {
	if route == "" {
		route = "unknown"
	}
	return method + " " + route
}

// GinMiddleware is the web framework instrumentation: one server span per
// request (source eto.WebFrameworkSource) wrapping every later stage.
//
//	r := gin.New()
//	r.Use(tracer.GinMiddleware(
//	    tracer.WithServiceName("my-service"),
//	    tracer.WithRouteResolver(mvc.RouteTemplate),
//	))
func GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		if cfg.Skip != nil && cfg.Skip(c) {
			c.Next()
			return
		}

		start := time.Now()

		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set(HeaderRequestID, reqID)
		}
		c.Header(HeaderRequestID, reqID)

		ctx := eto.Propagate().FromHTTPRequest(c.Request)

		builder := eto.Trace().
			Name(spanName(c.Request.Method, c.Request.URL.Path)).
			FromContext(ctx).
			Source(eto.WebFrameworkSource).
			Kind(trace.SpanKindServer).
			Attr("http.method", c.Request.Method).
			Attr("http.scheme", Scheme(c, cfg.TrustedProxies)).
			Attr("http.target", c.Request.URL.Path).
			Attr("http.user_agent", c.Request.UserAgent()).
			Attr("http.request_content_length", c.Request.ContentLength).
			Attr("net.host.name", c.Request.Host).
			Attr("net.peer.ip", c.ClientIP()).
			Attr("request.id", reqID)

		if c.Request.URL.RawQuery != "" {
			builder = builder.Attr("http.url", c.Request.URL.String())
		}

		ctx, span := builder.Start()
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		// Headers must be set before any later stage writes the response.
		eto.Propagate().FromContext(ctx).ToHTTPResponse(c.Writer)

		c.Next()

		route := cfg.RouteResolver(c)
		if route != "" {
			span.SetName(spanName(c.Request.Method, route))
			span.SetAttributes(Attr("http.route", route))
		} else {
			route = c.Request.URL.Path
		}

		status := c.Writer.Status()
		span.SetAttributes(
			Attr("http.status_code", status),
			Attr("http.response_content_length", c.Writer.Size()),
		)

		switch {
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			for _, err := range c.Errors {
				span.RecordError(err.Err)
			}
		case status >= http.StatusBadRequest:
			span.SetAttributes(Attr("http.error", true))
		default:
			span.SetStatus(codes.Ok, "")
		}

		if cfg.EnableMetrics {
			recordHTTPMetrics(c, cfg, route, status, time.Since(start))
		}
	}
}

func recordHTTPMetrics(c *gin.Context, cfg *MiddlewareConfig, route string, status int, elapsed time.Duration) {
	ctx := c.Request.Context()

	counter := eto.MetricCounter("http_requests_total").
		Attr("method", c.Request.Method).
		Attr("route", route).
		Attr("status", status).
		Attr("status_class", statusClass(status))
	hist := eto.MetricHistogram("http_request_duration_ms").
		Attr("method", c.Request.Method).
		Attr("route", route).
		Attr("status_class", statusClass(status))
	if cfg.ServiceName != "" {
		counter = counter.Attr("service", cfg.ServiceName)
		hist = hist.Attr("service", cfg.ServiceName)
	}
	counter.Add(ctx, 1)
	hist.Record(ctx, float64(elapsed.Milliseconds()))

	if size := c.Writer.Size(); size > 0 {
		eto.MetricHistogram("http_response_size_bytes").
			Unit("By").
			Attr("method", c.Request.Method).
			Attr("route", route).
			Record(ctx, float64(size))
	}
}

// TrustedProxies is the set of peers whose forwarding headers are believed.
// The zero value trusts nobody.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts single addresses and CIDR ranges.
func ParseTrustedProxies(list []string) (TrustedProxies, error) {
	out := make(TrustedProxies, 0, len(list))
	for _, entry := range list {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("tracer: trusted proxy %q: %w", entry, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("tracer: trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Contains reports whether ip falls inside one of the trusted ranges.
func (t TrustedProxies) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Scheme returns the request scheme. X-Forwarded-Proto is honoured only when
// the direct peer is a trusted proxy.
func Scheme(c *gin.Context, trusted TrustedProxies) string {
	if c.Request.TLS != nil {
		return "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" && trusted.Contains(c.RemoteIP()) {
		return strings.ToLower(proto)
	}
	return "http"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
