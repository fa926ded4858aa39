// Package metricer records what the request pipeline did with a request.
// Everything here is a no-op unless metrics are enabled in eto.Config.
package metricer

import (
	"context"
	"time"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
)

// Stage outcomes.
const (
	OutcomeServed     = "served"     // static file short-circuit
	OutcomeRedirected = "redirected" // https redirection
	OutcomeDenied     = "denied"     // authorization rejected the request
	OutcomeHandled    = "handled"    // exception handler rendered the error path
	OutcomeUnresolved = "unresolved" // routing found no endpoint
	OutcomeDispatched = "dispatched" // action executed
)

// Stage counts one outcome of a named pipeline stage.
//
//	metricer.Stage(ctx, "static-files", metricer.OutcomeServed, "path", "/css/site.css")
func Stage(ctx context.Context, stage, outcome string, attrs ...any) {
	b := eto.MetricCounter("pipeline_stage_total").
		Description("Requests finished or diverted by a pipeline stage").
		Attr("stage", stage).
		Attr("outcome", outcome)

	for i := 0; i+1 < len(attrs); i += 2 {
		if key, ok := attrs[i].(string); ok {
			b = b.Attr(key, attrs[i+1])
		}
	}

	b.Add(ctx, 1)
}

// Action records how long a controller action took.
func Action(ctx context.Context, controller, action string, elapsed time.Duration, failed bool) {
	eto.MetricHistogram("mvc_action_duration_ms").
		Description("Controller action execution time").
		Attr("controller", controller).
		Attr("action", action).
		Attr("failed", failed).
		Record(ctx, float64(elapsed.Microseconds())/1000)
}
