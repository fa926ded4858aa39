package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/icpmtech/Open-Telemetry-Solutions/mvc"
	"github.com/icpmtech/Open-Telemetry-Solutions/public/logger"
)

const HealthPath = "/Health"

type Health struct{}

func NewHealth() *Health { return &Health{} }

func (h *Health) Name() string { return "Health" }

func (h *Health) Actions() []mvc.Action {
	return []mvc.Action{
		{Name: "Index", Methods: []string{http.MethodGet}, Handler: h.Index},
	}
}

func (h *Health) Index(ac *mvc.ActionContext) error {
	ctx := ac.Context()
	// trace_id and span_id come from the request span via the logger.
	logger.Debug(ctx, "health check accessed",
		"endpoint", HealthPath,
		"method", ac.Request().Method,
		"path", ac.Request().URL.Path,
		"remote_ip", ac.Gin.ClientIP(),
	)

	return ac.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
