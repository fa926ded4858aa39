package startup

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
	"github.com/icpmtech/Open-Telemetry-Solutions/pipeline"
	"github.com/icpmtech/Open-Telemetry-Solutions/public/tracer"
)

// HostConfig configures the web host around the pipeline.
type HostConfig struct {
	Environment string `yaml:"environment" env:"APP_ENVIRONMENT"`

	HTTPAddr  string `yaml:"http_addr" env:"HTTP_ADDR"`
	HTTPSAddr string `yaml:"https_addr" env:"HTTPS_ADDR"`
	// HTTPSPort is the port plain HTTP requests are redirected to; 0 disables redirection.
	HTTPSPort   int    `yaml:"https_port" env:"HTTPS_PORT"`
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`

	HSTSMaxAge            time.Duration `yaml:"hsts_max_age" env:"HSTS_MAX_AGE"`
	HSTSIncludeSubDomains bool          `yaml:"hsts_include_subdomains" env:"HSTS_INCLUDE_SUBDOMAINS"`

	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" envSeparator:","`

	DownstreamURL   string        `yaml:"downstream_url" env:"DOWNSTREAM_URL"`
	OutboundTimeout time.Duration `yaml:"outbound_timeout" env:"OUTBOUND_TIMEOUT"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

func (h HostConfig) TLSEnabled() bool {
	return h.TLSCertFile != "" && h.TLSKeyFile != ""
}

type Config struct {
	Host      HostConfig `yaml:"host"`
	Telemetry eto.Config `yaml:"telemetry"`
}

func (c Config) Environment() pipeline.Environment {
	return pipeline.Environment(c.Host.Environment)
}

// Overrides are the host arguments given on the command line. Zero values
// leave the loaded configuration untouched.
type Overrides struct {
	ConfigFile  string
	Environment string
	URLs        string
	HTTPSPort   int
}

func DefaultConfig() Config {
	return Config{
		Host: HostConfig{
			Environment:       "Production",
			HTTPAddr:          ":5000",
			HSTSMaxAge:        pipeline.DefaultHSTSOptions().MaxAge,
			OutboundTimeout:   10 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Telemetry: eto.DefaultConfig(),
	}
}

// LoadConfig layers, lowest precedence first: defaults, the YAML settings
// file, environment variables, command-line overrides.
func LoadConfig(o Overrides) (Config, error) {
	cfg := DefaultConfig()

	if o.ConfigFile != "" {
		raw, err := os.ReadFile(o.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("startup: read settings: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("startup: parse settings %s: %w", o.ConfigFile, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("startup: environment: %w", err)
	}

	if o.Environment != "" {
		cfg.Host.Environment = o.Environment
	}
	if o.URLs != "" {
		cfg.Host.HTTPAddr = o.URLs
	}
	if o.HTTPSPort != 0 {
		cfg.Host.HTTPSPort = o.HTTPSPort
	}
	cfg.Telemetry.Environment = cfg.Host.Environment

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	h := c.Host
	if h.Environment == "" {
		return errors.New("startup: environment is required")
	}
	if h.HTTPAddr == "" && h.HTTPSAddr == "" {
		return errors.New("startup: no listen address configured")
	}
	if (h.TLSCertFile == "") != (h.TLSKeyFile == "") {
		return errors.New("startup: tls cert and key must be set together")
	}
	if h.HTTPSAddr != "" && !h.TLSEnabled() {
		return errors.New("startup: https address requires a tls cert and key")
	}
	if h.HTTPSPort < 0 || h.HTTPSPort > 65535 {
		return fmt.Errorf("startup: invalid https port %d", h.HTTPSPort)
	}
	if _, err := tracer.ParseTrustedProxies(h.TrustedProxies); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	if h.DownstreamURL != "" {
		if u, err := url.Parse(h.DownstreamURL); err != nil || u.Host == "" {
			return fmt.Errorf("startup: invalid downstream url %q", h.DownstreamURL)
		}
	}
	return c.Telemetry.Validate()
}

// redirectPort is the configured HTTPS port, or the port of the HTTPS
// listener when only that is known.
func (h HostConfig) redirectPort() int {
	if h.HTTPSPort > 0 {
		return h.HTTPSPort
	}
	if h.HTTPSAddr == "" {
		return 0
	}
	_, port, err := net.SplitHostPort(h.HTTPSAddr)
	if err != nil {
		return 0
	}
	p, _ := strconv.Atoi(port)
	return p
}
