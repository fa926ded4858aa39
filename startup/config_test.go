package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Production", cfg.Host.Environment)
	assert.Equal(t, ":5000", cfg.Host.HTTPAddr)
	assert.Equal(t, 0, cfg.Host.redirectPort())
	assert.Equal(t, eto.DefaultEndpoint, cfg.Telemetry.OtelEndpoint)
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
host:
  environment: Staging
  http_addr: ":8080"
  shutdown_timeout: 3s
telemetry:
  service_name: from-file
  endpoint: http://collector:4317
  trace_sources: [Billing]
`), 0o600))

	t.Setenv("OTEL_SERVICE_NAME", "from-env")
	t.Setenv("HTTPS_PORT", "5001")

	cfg, err := LoadConfig(Overrides{ConfigFile: file, Environment: "Development"})
	require.NoError(t, err)

	assert.Equal(t, "Development", cfg.Host.Environment, "flag beats file")
	assert.Equal(t, "Development", cfg.Telemetry.Environment)
	assert.Equal(t, ":8080", cfg.Host.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.Host.ShutdownTimeout)
	assert.Equal(t, 5001, cfg.Host.HTTPSPort)
	assert.Equal(t, "from-env", cfg.Telemetry.ServiceName, "env beats file")
	assert.Equal(t, "http://collector:4317", cfg.Telemetry.OtelEndpoint)
	assert.Equal(t, []string{"Billing"}, cfg.Telemetry.TraceSources)
	assert.Equal(t, 2048, cfg.Telemetry.MaxQueueSize, "defaults survive")
}

func TestLoadConfigEnvOnly(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "Development")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://otel.example.com:4317")
	t.Setenv("OTEL_TRACE_SOURCES", "A,B")

	cfg, err := LoadConfig(Overrides{URLs: ":9000", HTTPSPort: 9443})
	require.NoError(t, err)

	assert.Equal(t, "Development", cfg.Host.Environment)
	assert.Equal(t, ":9000", cfg.Host.HTTPAddr)
	assert.Equal(t, 9443, cfg.Host.redirectPort())
	assert.Equal(t, []string{"A", "B"}, cfg.Telemetry.TraceSources)

	target, err := cfg.Telemetry.Target()
	require.NoError(t, err)
	assert.False(t, target.Insecure)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(Overrides{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("host: ["), 0o600))
	_, err = LoadConfig(Overrides{ConfigFile: bad})
	assert.Error(t, err)

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	_, err = LoadConfig(Overrides{})
	assert.ErrorIs(t, err, eto.ErrInvalidEndpoint)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no environment", mutate: func(c *Config) { c.Host.Environment = "" }},
		{name: "no listener", mutate: func(c *Config) { c.Host.HTTPAddr = "" }},
		{name: "cert without key", mutate: func(c *Config) { c.Host.TLSCertFile = "cert.pem" }},
		{name: "https without tls", mutate: func(c *Config) { c.Host.HTTPSAddr = ":5001" }},
		{name: "bad https port", mutate: func(c *Config) { c.Host.HTTPSPort = 70000 }},
		{name: "bad downstream", mutate: func(c *Config) { c.Host.DownstreamURL = "not a url" }},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.Host.TrustedProxies = []string{"10.0.0.0/40"} }},
		{name: "bad telemetry", mutate: func(c *Config) { c.Telemetry.ServiceName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRedirectPortFromHTTPSAddr(t *testing.T) {
	h := HostConfig{HTTPSAddr: ":5001", TLSCertFile: "c", TLSKeyFile: "k"}
	assert.True(t, h.TLSEnabled())
	assert.Equal(t, 5001, h.redirectPort())

	h.HTTPSPort = 443
	assert.Equal(t, 443, h.redirectPort())
}
