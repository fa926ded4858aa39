package eto

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultServiceName is the service.name resource attribute used when none is configured.
	DefaultServiceName = "TestOpenTelemetry"
	// DefaultControllerSource is the custom instrumentation source used by controllers.
	DefaultControllerSource = "TestOpenTelemetry.Controllers"
	// DefaultEndpoint is the local collector's OTLP gRPC listener.
	DefaultEndpoint = "http://localhost:4317"

	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

var (
	ErrInvalidEndpoint     = errors.New("eto: invalid OTLP endpoint")
	ErrUnsupportedProtocol = errors.New("eto: unsupported OTLP protocol")
)

type Config struct {
	ServiceName  string   `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Environment  string   `yaml:"-"`
	OtelEndpoint string   `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"` // URI, e.g. "http://localhost:4317"
	OtelProtocol string   `yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL"` // grpc | http/protobuf
	TraceSources []string `yaml:"trace_sources" env:"OTEL_TRACE_SOURCES" envSeparator:","`

	EnableMetrics bool `yaml:"metrics_enabled" env:"OTEL_METRICS_ENABLED"`
	EnableLogs    bool `yaml:"logs_enabled" env:"OTEL_LOGS_ENABLED"`

	// MaxQueueSize bounds the span queue between producers and the exporter.
	// Spans are dropped once it is full.
	MaxQueueSize       int           `yaml:"max_queue_size" env:"OTEL_BSP_MAX_QUEUE_SIZE"`
	MaxExportBatchSize int           `yaml:"max_export_batch_size" env:"OTEL_BSP_MAX_EXPORT_BATCH_SIZE"`
	ExportTimeout      time.Duration `yaml:"export_timeout" env:"OTEL_EXPORTER_OTLP_TIMEOUT"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`   // debug / info / warn / error
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"` // json / console
}

// DefaultConfig mirrors the collector wiring the service has always shipped with.
func DefaultConfig() Config {
	return Config{
		ServiceName:        DefaultServiceName,
		Environment:        "Production",
		OtelEndpoint:       DefaultEndpoint,
		OtelProtocol:       ProtocolGRPC,
		TraceSources:       []string{DefaultControllerSource},
		MaxQueueSize:       2048,
		MaxExportBatchSize: 512,
		ExportTimeout:      10 * time.Second,
		LogLevel:           "info",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return errors.New("eto: service name is required")
	}
	if _, err := c.Target(); err != nil {
		return err
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("eto: max queue size must be positive, got %d", c.MaxQueueSize)
	}
	if c.MaxExportBatchSize <= 0 || c.MaxExportBatchSize > c.MaxQueueSize {
		return fmt.Errorf("eto: max export batch size must be in 1..%d, got %d", c.MaxQueueSize, c.MaxExportBatchSize)
	}
	return nil
}

// ExporterTarget is the parsed form of OtelEndpoint.
type ExporterTarget struct {
	Protocol string
	Host     string // host:port
	Path     string
	Insecure bool
}

func (t ExporterTarget) String() string {
	scheme := "https"
	if t.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s (%s)", scheme, t.Host, t.Path, t.Protocol)
}

// Target parses the endpoint URI. TLS is chosen by the scheme: http is plaintext.
func (c Config) Target() (ExporterTarget, error) {
	protocol := c.OtelProtocol
	if protocol == "" {
		protocol = ProtocolGRPC
	}
	if protocol != ProtocolGRPC && protocol != ProtocolHTTP {
		return ExporterTarget{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, protocol)
	}

	u, err := url.Parse(c.OtelEndpoint)
	if err != nil {
		return ExporterTarget{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ExporterTarget{}, fmt.Errorf("%w: scheme must be http or https: %q", ErrInvalidEndpoint, c.OtelEndpoint)
	}
	if u.Host == "" {
		return ExporterTarget{}, fmt.Errorf("%w: missing host: %q", ErrInvalidEndpoint, c.OtelEndpoint)
	}

	path := strings.TrimRight(u.Path, "/")
	return ExporterTarget{
		Protocol: protocol,
		Host:     u.Host,
		Path:     path,
		Insecure: u.Scheme == "http",
	}, nil
}

// Sources returns the full set of instrumentation scopes whose spans are exported:
// the configured custom sources plus the built-in web framework and HTTP client ones.
func (c Config) Sources() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(c.TraceSources)+2)
	for _, s := range append(append([]string{}, c.TraceSources...), WebFrameworkSource, HTTPClientSource) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// controllerSource is the tracer name used by Trace() when none is given.
func (c Config) controllerSource() string {
	for _, s := range c.TraceSources {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return DefaultControllerSource
}

// Settings is the resolved, comparable tracing configuration.
type Settings struct {
	ServiceName string
	Environment string
	Sources     []string
	Target      ExporterTarget
	QueueSize   int
	BatchSize   int
}

func (c Config) Settings() (Settings, error) {
	target, err := c.Target()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		ServiceName: c.ServiceName,
		Environment: c.Environment,
		Sources:     c.Sources(),
		Target:      target,
		QueueSize:   c.MaxQueueSize,
		BatchSize:   c.MaxExportBatchSize,
	}, nil
}
