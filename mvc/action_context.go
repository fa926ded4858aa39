package mvc

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

// ActionContext is handed to every action.
type ActionContext struct {
	Gin      *gin.Context
	Endpoint *Endpoint
	Route    RouteValues
	User     Principal

	ctx   context.Context
	views *ViewEngine
}

// Context carries the action span; use it for logs, child spans and outbound calls.
func (a *ActionContext) Context() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return a.Gin.Request.Context()
}

func (a *ActionContext) Request() *http.Request { return a.Gin.Request }

// View renders {Controller}/{Action} with status 200.
func (a *ActionContext) View(title string, model any) error {
	return a.ViewNamed(http.StatusOK, a.Endpoint.Controller+"/"+a.Endpoint.Action.Name, title, model)
}

func (a *ActionContext) ViewNamed(status int, name, title string, model any) error {
	if a.views == nil {
		return ErrViewNotFound
	}
	t, err := a.views.Lookup(name)
	if err != nil {
		return err
	}
	a.Gin.Render(status, render.HTML{
		Template: t,
		Name:     layoutTemplate,
		Data:     ViewData{Title: title, Model: model},
	})
	return nil
}

func (a *ActionContext) JSON(status int, v any) error {
	a.Gin.JSON(status, v)
	return nil
}
