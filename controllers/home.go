// Package controllers holds the site's controllers. Their spans come from
// the custom controller source (eto.DefaultControllerSource).
package controllers

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/icpmtech/Open-Telemetry-Solutions/mvc"
	"github.com/icpmtech/Open-Telemetry-Solutions/pipeline"
	"github.com/icpmtech/Open-Telemetry-Solutions/public/logger"
	"github.com/icpmtech/Open-Telemetry-Solutions/public/tracer"
)

// ErrorPath is where the exception handler re-executes failed requests.
const ErrorPath = "/Home/Error"

type Home struct{}

func NewHome() *Home { return &Home{} }

func (h *Home) Name() string { return "Home" }

func (h *Home) Actions() []mvc.Action {
	return []mvc.Action{
		{Name: "Index", Methods: []string{http.MethodGet}, Handler: h.Index},
		{Name: "Privacy", Methods: []string{http.MethodGet}, Handler: h.Privacy},
		{Name: "Error", Handler: h.Error},
	}
}

type IndexModel struct {
	TraceID string
}

func (h *Home) Index(ac *mvc.ActionContext) error {
	ctx, end := tracer.Start(ac.Context(), "home.index.render")
	defer end()

	logger.Info(ctx, "home page requested", "client_ip", ac.Gin.ClientIP())

	model := IndexModel{}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		model.TraceID = sc.TraceID().String()
	}
	return ac.View("Home Page", model)
}

func (h *Home) Privacy(ac *mvc.ActionContext) error {
	return ac.View("Privacy Policy", nil)
}

type ErrorModel struct {
	RequestID    string
	OriginalPath string
}

// Error renders the generic error page. Re-executed by the exception handler
// it answers 500; requested directly it answers 200.
func (h *Home) Error(ac *mvc.ActionContext) error {
	ctx := ac.Context()
	ac.Gin.Header("Cache-Control", "no-cache, no-store")

	model := ErrorModel{RequestID: ac.Gin.GetHeader(tracer.HeaderRequestID)}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		model.RequestID = sc.TraceID().String()
	}

	status := http.StatusOK
	if path, ok := pipeline.OriginalPath(ac.Request()); ok {
		status = http.StatusInternalServerError
		model.OriginalPath = path
		logger.Warn(ctx, "rendering error page", "original_path", path)
	}
	return ac.ViewNamed(status, "Shared/Error", "Error", model)
}
