package eto

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	otlploggrpc "go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otlploghttp "go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otlpmetricgrpc "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otlpmetrichttp "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otlptracegrpc "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otellog "go.opentelemetry.io/otel/log"
	logglobal "go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
)

var (
	globalCfg         = DefaultConfig()
	globalTP          *sdktrace.TracerProvider
	globalMP          *sdkmetric.MeterProvider
	globalLogProvider *sdklog.LoggerProvider
	globalOtelLogger  otellog.Logger
	globalLogger      *zap.Logger
	globalPropagator  propagation.TextMapPropagator
	globalMeter       metric.Meter
)

// Option customises Init. Used mainly to swap the OTLP exporter in tests.
type Option func(*initOptions)

type initOptions struct {
	spanExporter   sdktrace.SpanExporter
	syncExport     bool
	spanProcessors []sdktrace.SpanProcessor
	metricReader   sdkmetric.Reader
	logger         *zap.Logger
}

// WithSpanExporter replaces the OTLP trace exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *initOptions) { o.spanExporter = exp }
}

// WithSyncExport exports every span as it ends instead of batching.
func WithSyncExport() Option {
	return func(o *initOptions) { o.syncExport = true }
}

// WithSpanProcessor registers an extra processor behind the source filter.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *initOptions) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// WithMetricReader replaces the periodic OTLP metric reader. Only used when
// metrics are enabled.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *initOptions) { o.metricReader = r }
}

// WithLogger uses an existing zap logger instead of building one from Config.
func WithLogger(l *zap.Logger) Option {
	return func(o *initOptions) { o.logger = l }
}

// Init builds the tracer provider (and optionally meter and logger providers),
// installs them as globals and returns a shutdown func that flushes everything.
// Exporters connect lazily so an unreachable collector never blocks startup.
func Init(ctx context.Context, cfg Config, opts ...Option) (func(context.Context) error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target, err := cfg.Target()
	if err != nil {
		return nil, err
	}

	o := &initOptions{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger, err = newZapLogger(cfg)
		if err != nil {
			return nil, err
		}
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("eto: resource: %w", err)
	}

	traceExp := o.spanExporter
	if traceExp == nil {
		traceExp, err = newTraceExporter(ctx, cfg, target)
		if err != nil {
			return nil, fmt.Errorf("eto: trace exporter: %w", err)
		}
	}

	var exportProcessor sdktrace.SpanProcessor
	if o.syncExport {
		exportProcessor = sdktrace.NewSimpleSpanProcessor(traceExp)
	} else {
		exportProcessor = sdktrace.NewBatchSpanProcessor(traceExp,
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(newSourceFilter(exportProcessor, cfg.Sources())),
	}
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(newSourceFilter(sp, cfg.Sources())))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	var mp *sdkmetric.MeterProvider
	if cfg.EnableMetrics {
		reader := o.metricReader
		if reader == nil {
			metricExp, err := newMetricExporter(ctx, cfg, target)
			if err != nil {
				_ = tp.Shutdown(ctx)
				return nil, fmt.Errorf("eto: metric exporter: %w", err)
			}
			reader = sdkmetric.NewPeriodicReader(metricExp)
		}
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)
	}

	var lp *sdklog.LoggerProvider
	if cfg.EnableLogs {
		logExp, err := newLogExporter(ctx, cfg, target)
		if err != nil {
			_ = tp.Shutdown(ctx)
			if mp != nil {
				_ = mp.Shutdown(ctx)
			}
			return nil, fmt.Errorf("eto: log exporter: %w", err)
		}
		lp = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
			sdklog.WithResource(res),
		)
	}

	globalCfg = cfg
	globalTP = tp
	otel.SetTracerProvider(tp)

	globalMP = mp
	globalMeter = nil
	resetInstrumentCache()
	if mp != nil {
		otel.SetMeterProvider(mp)
		globalMeter = mp.Meter(cfg.ServiceName)
	}

	globalLogProvider = lp
	globalOtelLogger = nil
	if lp != nil {
		logglobal.SetLoggerProvider(lp)
		globalOtelLogger = lp.Logger(cfg.ServiceName)
	}

	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(propagator)
	globalPropagator = propagator

	globalLogger = logger
	logger.Info("telemetry initialised",
		zap.String("exporter", target.String()),
		zap.Strings("sources", cfg.Sources()),
		zap.Int("max_queue_size", cfg.MaxQueueSize),
		zap.Bool("metrics", cfg.EnableMetrics),
		zap.Bool("logs", cfg.EnableLogs),
	)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
		if mp != nil {
			if err := mp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("meter provider: %w", err))
			}
		}
		if lp != nil {
			if err := lp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("logger provider: %w", err))
			}
		}
		_ = logger.Sync()
		return errors.Join(errs...)
	}

	return shutdown, nil
}

// Logger returns the process logger, or a no-op logger before Init.
func Logger() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// IsDevelopment reports whether the named environment is a development one.
func IsDevelopment(env string) bool {
	return strings.EqualFold(env, "Development") || strings.EqualFold(env, "dev")
}

func newZapLogger(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		l, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("eto: invalid log level %q: %w", cfg.LogLevel, err)
		}
		level = l
	}

	zc := zap.NewProductionConfig()
	if IsDevelopment(cfg.Environment) {
		zc = zap.NewDevelopmentConfig()
	}
	switch cfg.LogFormat {
	case "":
	case "json", "console":
		zc.Encoding = cfg.LogFormat
	default:
		return nil, fmt.Errorf("eto: invalid log format %q (json|console)", cfg.LogFormat)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Environment),
	), nil
}

func connectParams(cfg Config) grpc.ConnectParams {
	p := grpc.ConnectParams{Backoff: backoff.DefaultConfig}
	if cfg.ExportTimeout > 0 {
		p.MinConnectTimeout = cfg.ExportTimeout
	}
	return p
}

func newTraceExporter(ctx context.Context, cfg Config, t ExporterTarget) (sdktrace.SpanExporter, error) {
	if t.Protocol == ProtocolHTTP {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.Host)}
		if t.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if t.Path != "" {
			opts = append(opts, otlptracehttp.WithURLPath(t.Path))
		}
		if cfg.ExportTimeout > 0 {
			opts = append(opts, otlptracehttp.WithTimeout(cfg.ExportTimeout))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(t.Host),
		otlptracegrpc.WithDialOption(grpc.WithConnectParams(connectParams(cfg))),
	}
	if t.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.ExportTimeout))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newMetricExporter(ctx context.Context, cfg Config, t ExporterTarget) (sdkmetric.Exporter, error) {
	if t.Protocol == ProtocolHTTP {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(t.Host)}
		if t.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if cfg.ExportTimeout > 0 {
			opts = append(opts, otlpmetrichttp.WithTimeout(cfg.ExportTimeout))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(t.Host),
		otlpmetricgrpc.WithDialOption(grpc.WithConnectParams(connectParams(cfg))),
	}
	if t.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, otlpmetricgrpc.WithTimeout(cfg.ExportTimeout))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func newLogExporter(ctx context.Context, cfg Config, t ExporterTarget) (sdklog.Exporter, error) {
	if t.Protocol == ProtocolHTTP {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(t.Host)}
		if t.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		if cfg.ExportTimeout > 0 {
			opts = append(opts, otlploghttp.WithTimeout(cfg.ExportTimeout))
		}
		return otlploghttp.New(ctx, opts...)
	}

	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(t.Host),
		otlploggrpc.WithDialOption(grpc.WithConnectParams(connectParams(cfg))),
	}
	if t.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, otlploggrpc.WithTimeout(cfg.ExportTimeout))
	}
	return otlploggrpc.New(ctx, opts...)
}
