package pipeline

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
	"github.com/icpmtech/Open-Telemetry-Solutions/metricer"
	"github.com/icpmtech/Open-Telemetry-Solutions/public/tracer"
)

type HSTSOptions struct {
	MaxAge            time.Duration
	IncludeSubDomains bool
	Preload           bool
	ExcludedHosts     []string
}

// DefaultHSTSOptions: 30 days, loopback hosts excluded.
func DefaultHSTSOptions() HSTSOptions {
	return HSTSOptions{
		MaxAge:        30 * 24 * time.Hour,
		ExcludedHosts: []string{"localhost", "127.0.0.1", "[::1]"},
	}
}

func (o HSTSOptions) headerValue() string {
	v := "max-age=" + strconv.FormatInt(int64(o.MaxAge/time.Second), 10)
	if o.IncludeSubDomains {
		v += "; includeSubDomains"
	}
	if o.Preload {
		v += "; preload"
	}
	return v
}

// hostname strips the port and IPv6 brackets from a Host header value.
func hostname(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.Trim(hostport, "[]")
}

// HSTS adds Strict-Transport-Security to responses served over HTTPS.
// A forwarded scheme counts only from a trusted proxy.
func HSTS(opts HSTSOptions, trusted tracer.TrustedProxies) Stage {
	excluded := make(map[string]bool, len(opts.ExcludedHosts))
	for _, h := range opts.ExcludedHosts {
		excluded[strings.ToLower(strings.Trim(h, "[]"))] = true
	}
	value := opts.headerValue()

	return Stage{
		Name: StageHSTS,
		Handler: func(c *gin.Context) {
			if tracer.Scheme(c, trusted) == "https" && !excluded[strings.ToLower(hostname(c.Request.Host))] {
				c.Header("Strict-Transport-Security", value)
			}
			c.Next()
		},
	}
}

// HTTPSRedirection answers plain HTTP requests with a 307 to the same URL on
// httpsPort. With no port configured requests pass through and a warning is
// logged once. Clients other than trusted proxies cannot skip the redirect
// with X-Forwarded-Proto.
func HTTPSRedirection(httpsPort int, trusted tracer.TrustedProxies) Stage {
	var warnOnce sync.Once

	return Stage{
		Name: StageHTTPSRedirection,
		Handler: func(c *gin.Context) {
			if tracer.Scheme(c, trusted) == "https" {
				c.Next()
				return
			}
			if httpsPort <= 0 {
				warnOnce.Do(func() {
					eto.Log().FromContext(c.Request.Context()).Warn().
						Msg("failed to determine the https port for redirect").
						Send()
				})
				c.Next()
				return
			}

			host := hostname(c.Request.Host)
			if strings.Contains(host, ":") {
				host = "[" + host + "]"
			}
			if httpsPort != 443 {
				host = fmt.Sprintf("%s:%d", host, httpsPort)
			}
			target := "https://" + host + c.Request.URL.RequestURI()

			metricer.Stage(c.Request.Context(), StageHTTPSRedirection, metricer.OutcomeRedirected)
			c.Redirect(http.StatusTemporaryRedirect, target)
			c.Abort()
		},
	}
}
