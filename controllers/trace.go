package controllers

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
	"github.com/icpmtech/Open-Telemetry-Solutions/mvc"
	"github.com/icpmtech/Open-Telemetry-Solutions/public/logger"
	"github.com/icpmtech/Open-Telemetry-Solutions/public/tracer"
)

// Trace emits hand-made spans and an instrumented outbound call, for checking
// a collector setup end to end.
type Trace struct {
	downstream string
	timeout    time.Duration

	clientOnce sync.Once
	client     *http.Client
}

// NewTrace: downstreamURL is the target of Outbound; empty disables it.
func NewTrace(downstreamURL string, timeout time.Duration) *Trace {
	return &Trace{downstream: downstreamURL, timeout: timeout}
}

func (t *Trace) Name() string { return "Trace" }

func (t *Trace) Actions() []mvc.Action {
	get := []string{http.MethodGet}
	return []mvc.Action{
		{Name: "Trigger", Methods: get, Handler: t.Trigger},
		{Name: "TriggerContext", Methods: get, Handler: t.TriggerContext},
		{Name: "Outbound", Methods: get, Handler: t.Outbound},
	}
}

func (t *Trace) Trigger(ac *mvc.ActionContext) error {
	err := tracer.Run(ac.Context(), "manual-span", func(ctx context.Context) error {
		logger.Info(ctx, "triggered manual span")
		return nil
	})
	if err != nil {
		return err
	}
	return ac.JSON(http.StatusOK, gin.H{"message": "Manual trace span sent to the collector"})
}

func (t *Trace) TriggerContext(ac *mvc.ActionContext) error {
	err := tracer.Run(ac.Context(), "manual-context-span", func(ctx context.Context) error {
		logger.Warn(ctx, "manual span with custom context triggered")
		return nil
	},
		"user.id", "12345",
		"session.id", "abcde",
		"custom.context", "example value",
	)
	if err != nil {
		return err
	}
	return ac.JSON(http.StatusOK, gin.H{"message": "Manual trace span with custom context attributes sent"})
}

// httpClient is built on first use so it binds to the tracer provider
// installed at startup.
func (t *Trace) httpClient() *http.Client {
	t.clientOnce.Do(func() {
		t.client = eto.NewHTTPClient(t.timeout)
	})
	return t.client
}

// Outbound calls the downstream URL; the client span nests under this action's span.
func (t *Trace) Outbound(ac *mvc.ActionContext) error {
	ctx := ac.Context()
	if t.downstream == "" {
		return ac.JSON(http.StatusServiceUnavailable, gin.H{"error": "downstream not configured"})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.downstream, nil)
	if err != nil {
		return err
	}
	resp, err := t.httpClient().Do(req)
	if err != nil {
		logger.Error(ctx, "downstream call failed", "url", t.downstream, "error", err)
		return ac.JSON(http.StatusBadGateway, gin.H{"error": "downstream unavailable"})
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Info(ctx, "downstream call finished", "url", t.downstream, "status", resp.StatusCode)
	return ac.JSON(http.StatusOK, gin.H{
		"downstream": t.downstream,
		"status":     resp.StatusCode,
	})
}
