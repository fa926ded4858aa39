// Package startup composes the web application: configuration, service
// registration, telemetry and the ordered request pipeline.
package startup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/icpmtech/Open-Telemetry-Solutions/controllers"
	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
	"github.com/icpmtech/Open-Telemetry-Solutions/mvc"
	"github.com/icpmtech/Open-Telemetry-Solutions/pipeline"
	"github.com/icpmtech/Open-Telemetry-Solutions/public/tracer"
	"github.com/icpmtech/Open-Telemetry-Solutions/web"
)

type Builder struct {
	Config   Config
	Services *ServiceCollection
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{Config: cfg, Services: &ServiceCollection{}}
}

type shutdownFunc struct {
	name string
	fn   func(context.Context) error
}

// App is a built application. Its pipeline is fixed at Build time.
type App struct {
	cfg      Config
	engine   *gin.Engine
	stages   []pipeline.Stage
	registry *mvc.Registry
	settings eto.Settings

	shutdowns []shutdownFunc
}

// Build seals the services, starts telemetry and composes the pipeline.
// Registering services on b afterwards fails with ErrServicesSealed.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	cfg := b.Config
	svc := b.Services.seal()

	if len(svc.controllers) == 0 {
		return nil, ErrNoControllers
	}
	registry, err := mvc.NewRegistry(svc.controllers...)
	if err != nil {
		return nil, err
	}
	viewsFS := svc.views
	if viewsFS == nil {
		viewsFS = web.Views()
	}
	views, err := mvc.NewViewEngine(viewsFS)
	if err != nil {
		return nil, err
	}
	static := svc.static
	if static == nil {
		static = web.Static()
	}

	proxies, err := tracer.ParseTrustedProxies(cfg.Host.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("startup: trusted proxies: %w", err)
	}
	env := cfg.Environment()
	if !env.IsDevelopment() && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Host.TrustedProxies); err != nil {
		return nil, fmt.Errorf("startup: trusted proxies: %w", err)
	}

	app := &App{cfg: cfg, engine: engine, registry: registry}

	// Nothing may fail after Init: the providers are process globals.
	if tel := svc.telemetry; tel != nil {
		telCfg := tel.cfg
		if telCfg.Environment == "" {
			telCfg.Environment = cfg.Host.Environment
		}
		settings, err := telCfg.Settings()
		if err != nil {
			return nil, fmt.Errorf("startup: telemetry: %w", err)
		}
		shutdown, err := eto.Init(ctx, telCfg, tel.opts...)
		if err != nil {
			return nil, fmt.Errorf("startup: telemetry: %w", err)
		}
		app.settings = settings
		app.onShutdown("telemetry", shutdown)
	}

	resolver := svc.resolver
	if resolver == nil {
		resolver = mvc.Anonymous
	}
	steps := []pipeline.Step{
		{Stage: pipeline.Stage{
			Name: pipeline.StageInstrumentation,
			Handler: tracer.GinMiddleware(
				tracer.WithServiceName(app.settings.ServiceName),
				tracer.WithSkipper(reexecuted),
				tracer.WithTrustedProxies(proxies),
				tracer.WithRouteResolver(mvc.RouteTemplate),
				tracer.WithMetrics(svc.telemetry != nil && svc.telemetry.cfg.EnableMetrics),
			),
		}},
		{When: pipeline.Development, Stage: pipeline.DeveloperExceptionPage()},
		{When: pipeline.NotDevelopment, Stage: pipeline.ExceptionHandler(engine, controllers.ErrorPath)},
		{When: pipeline.NotDevelopment, Stage: pipeline.HSTS(pipeline.HSTSOptions{
			MaxAge:            cfg.Host.HSTSMaxAge,
			IncludeSubDomains: cfg.Host.HSTSIncludeSubDomains,
			ExcludedHosts:     pipeline.DefaultHSTSOptions().ExcludedHosts,
		}, proxies)},
		{Stage: pipeline.HTTPSRedirection(cfg.Host.redirectPort(), proxies)},
		{Stage: pipeline.StaticFiles(static)},
		{Stage: mvc.Routing(mvc.MustParsePattern(mvc.DefaultPattern), registry)},
		{Stage: mvc.Authorization(resolver)},
		{Stage: mvc.Endpoints(views)},
	}
	app.stages = pipeline.Compose(env, steps)
	pipeline.Install(engine, app.stages)

	eto.Log().Info().Msg("pipeline composed").
		Field("environment", string(env)).
		Field("stages", pipeline.Names(app.stages)).
		Send()
	return app, nil
}

// reexecuted is true while ExceptionHandler replays a failed request on the
// error path; the outer request span already covers it.
func reexecuted(c *gin.Context) bool {
	_, ok := pipeline.OriginalPath(c.Request)
	return ok
}

func (a *App) onShutdown(name string, fn func(context.Context) error) {
	a.shutdowns = append(a.shutdowns, shutdownFunc{name: name, fn: fn})
}

// Pipeline returns the installed stage names in request order.
func (a *App) Pipeline() []string { return pipeline.Names(a.stages) }

// TracingSettings is the zero value when telemetry was not registered.
func (a *App) TracingSettings() eto.Settings { return a.settings }

func (a *App) Endpoints() []*mvc.Endpoint { return a.registry.Endpoints() }

func (a *App) Handler() http.Handler { return a.engine }

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives or a listener
// fails, then shuts down the servers and telemetry.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := a.cfg.Host
	var servers []*http.Server
	errCh := make(chan error, 2)

	serve := func(srv *http.Server, tls bool) {
		var err error
		if tls {
			err = srv.ListenAndServeTLS(h.TLSCertFile, h.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("startup: listen %s: %w", srv.Addr, err)
		}
	}

	if h.HTTPAddr != "" {
		srv := a.newServer(h.HTTPAddr)
		servers = append(servers, srv)
		go serve(srv, false)
		eto.Log().Info().Msg("listening").Field("addr", h.HTTPAddr).Field("scheme", "http").Send()
	}
	if h.TLSEnabled() && h.HTTPSAddr != "" {
		srv := a.newServer(h.HTTPSAddr)
		servers = append(servers, srv)
		go serve(srv, true)
		eto.Log().Info().Msg("listening").Field("addr", h.HTTPSAddr).Field("scheme", "https").Send()
	}
	for _, srv := range servers {
		a.onShutdown("http "+srv.Addr, srv.Shutdown)
	}

	var runErr error
	select {
	case <-ctx.Done():
		eto.Log().Info().Msg("received shutdown signal").Send()
	case runErr = <-errCh:
		eto.Log().Error().Msg("server failed").Err(runErr).Send()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

func (a *App) newServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           a.engine,
		ReadHeaderTimeout: a.cfg.Host.ReadHeaderTimeout,
	}
}

// Shutdown runs the registered shutdown functions, most recent first.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		fn := a.shutdowns[i]
		start := time.Now()
		eto.Log().Info().Msg("shutting down").Field("name", fn.name).Send()
		if err := fn.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", fn.name, err))
			continue
		}
		eto.Logger().Debug("shutdown complete", zap.String("name", fn.name), zap.Duration("duration", time.Since(start)))
	}
	a.shutdowns = nil
	return errors.Join(errs...)
}

// RegisterSite registers the site's controllers, assets and telemetry.
func RegisterSite(b *Builder) error {
	cfg := b.Config
	if err := b.Services.AddControllersWithViews(web.Views(),
		controllers.NewHome(),
		controllers.NewHealth(),
		controllers.NewTrace(cfg.Host.DownstreamURL, cfg.Host.OutboundTimeout),
	); err != nil {
		return err
	}
	if err := b.Services.AddStaticFiles(web.Static()); err != nil {
		return err
	}
	return b.Services.AddOpenTelemetry(cfg.Telemetry)
}

// ConfigureAndRun loads configuration, registers the site, builds the
// pipeline and serves until shutdown.
func ConfigureAndRun(ctx context.Context, o Overrides) error {
	cfg, err := LoadConfig(o)
	if err != nil {
		return err
	}

	b := NewBuilder(cfg)
	if err := RegisterSite(b); err != nil {
		return err
	}
	app, err := b.Build(ctx)
	if err != nil {
		return err
	}
	s := app.TracingSettings()
	eto.Log().Info().Msg("tracing configured").
		Field("service", s.ServiceName).
		Field("sources", s.Sources).
		Field("exporter", s.Target.String()).
		Send()
	return app.Run(ctx)
}
