package mvc

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
	"github.com/icpmtech/Open-Telemetry-Solutions/metricer"
	"github.com/icpmtech/Open-Telemetry-Solutions/pipeline"
)

const (
	keyEndpoint  = "mvc.endpoint"
	keyRoute     = "mvc.route"
	keyTemplate  = "mvc.template"
	keyPrincipal = "mvc.principal"
)

// CurrentEndpoint returns the endpoint chosen by the routing stage, if any.
func CurrentEndpoint(c *gin.Context) *Endpoint {
	if v, ok := c.Get(keyEndpoint); ok {
		ep, _ := v.(*Endpoint)
		return ep
	}
	return nil
}

func CurrentRoute(c *gin.Context) RouteValues {
	if v, ok := c.Get(keyRoute); ok {
		rv, _ := v.(RouteValues)
		return rv
	}
	return nil
}

// RouteTemplate is the template of the matched route, "" when unresolved.
func RouteTemplate(c *gin.Context) string {
	return c.GetString(keyTemplate)
}

func CurrentUser(c *gin.Context) Principal {
	if v, ok := c.Get(keyPrincipal); ok {
		p, _ := v.(Principal)
		return p
	}
	return Principal{}
}

// Routing matches the path against pattern and looks up the action. An
// unmatched request keeps flowing with no endpoint and ends as a 404.
func Routing(pattern *RoutePattern, registry *Registry) pipeline.Stage {
	return pipeline.Stage{
		Name: pipeline.StageRouting,
		Handler: func(c *gin.Context) {
			values, ok := pattern.Match(c.Request.URL.Path)
			if !ok {
				metricer.Stage(c.Request.Context(), pipeline.StageRouting, metricer.OutcomeUnresolved)
				c.Next()
				return
			}
			ep, ok := registry.Lookup(values.Controller(), values.Action())
			if !ok || !ep.AllowsMethod(c.Request.Method) {
				metricer.Stage(c.Request.Context(), pipeline.StageRouting, metricer.OutcomeUnresolved)
				c.Next()
				return
			}

			c.Set(keyRoute, values)
			c.Set(keyEndpoint, ep)
			c.Set(keyTemplate, pattern.Template())

			trace.SpanFromContext(c.Request.Context()).SetAttributes(
				attribute.String("mvc.controller", ep.Controller),
				attribute.String("mvc.action", ep.Action.Name),
			)
			c.Next()
		},
	}
}

// Authorization resolves the caller and rejects it before dispatch when the
// endpoint demands it: 401 for anonymous callers, 403 for missing roles.
// It does nothing for requests without an endpoint.
func Authorization(resolve PrincipalResolver) pipeline.Stage {
	if resolve == nil {
		resolve = Anonymous
	}
	return pipeline.Stage{
		Name: pipeline.StageAuthorization,
		Handler: func(c *gin.Context) {
			ep := CurrentEndpoint(c)
			if ep == nil {
				c.Next()
				return
			}

			user := resolve(c)
			c.Set(keyPrincipal, user)

			if status, ok := authorize(ep, user); !ok {
				ctx := c.Request.Context()
				trace.SpanFromContext(ctx).AddEvent("authorization.denied", trace.WithAttributes(
					attribute.String("mvc.endpoint", ep.DisplayName),
					attribute.Int("http.status_code", status),
				))
				metricer.Stage(ctx, pipeline.StageAuthorization, metricer.OutcomeDenied, "endpoint", ep.DisplayName)
				c.AbortWithStatus(status)
				return
			}
			c.Next()
		},
	}
}

func authorize(ep *Endpoint, user Principal) (int, bool) {
	if !ep.RequiresAuthorization() {
		return http.StatusOK, true
	}
	if !user.IsAuthenticated() {
		return http.StatusUnauthorized, false
	}
	if len(ep.Action.Roles) == 0 {
		return http.StatusOK, true
	}
	for _, role := range ep.Action.Roles {
		if user.IsInRole(role) {
			return http.StatusOK, true
		}
	}
	return http.StatusForbidden, false
}

// Endpoints invokes the resolved action inside a span from the controller
// source. An action error is recorded on the context for the exception stage.
func Endpoints(views *ViewEngine) pipeline.Stage {
	return pipeline.Stage{
		Name: pipeline.StageEndpoints,
		Handler: func(c *gin.Context) {
			ep := CurrentEndpoint(c)
			if ep == nil {
				return
			}

			ac := &ActionContext{
				Gin:      c,
				Endpoint: ep,
				Route:    CurrentRoute(c),
				User:     CurrentUser(c),
				views:    views,
			}

			builder := eto.Trace().
				Name(ep.DisplayName).
				FromContext(c.Request.Context()).
				Attr("mvc.controller", ep.Controller).
				Attr("mvc.action", ep.Action.Name)
			if id, ok := ac.Route.ID(); ok {
				builder = builder.Attr("mvc.id", id)
			}

			start := time.Now()
			err := builder.Run(func(ctx context.Context) error {
				ac.ctx = ctx
				return ep.Action.Handler(ac)
			})
			metricer.Action(c.Request.Context(), ep.Controller, ep.Action.Name, time.Since(start), err != nil)
			if err != nil {
				_ = c.Error(err)
				return
			}
			metricer.Stage(c.Request.Context(), pipeline.StageEndpoints, metricer.OutcomeDispatched)
		},
	}
}
