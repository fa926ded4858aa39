package eto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "TestOpenTelemetry", cfg.ServiceName)
	assert.Equal(t, "http://localhost:4317", cfg.OtelEndpoint)
	assert.Equal(t, ProtocolGRPC, cfg.OtelProtocol)
	assert.Equal(t, 2048, cfg.MaxQueueSize)
	assert.Equal(t, 512, cfg.MaxExportBatchSize)
}

func TestConfigTarget(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		protocol string
		want     ExporterTarget
		wantErr  error
	}{
		{
			name:     "default collector",
			endpoint: "http://localhost:4317",
			want:     ExporterTarget{Protocol: ProtocolGRPC, Host: "localhost:4317", Insecure: true},
		},
		{
			name:     "https is secure",
			endpoint: "https://collector.example.com:4317",
			protocol: ProtocolGRPC,
			want:     ExporterTarget{Protocol: ProtocolGRPC, Host: "collector.example.com:4317"},
		},
		{
			name:     "http protobuf keeps path",
			endpoint: "http://otel:4318/v1/traces/",
			protocol: ProtocolHTTP,
			want:     ExporterTarget{Protocol: ProtocolHTTP, Host: "otel:4318", Path: "/v1/traces", Insecure: true},
		},
		{
			name:     "bare host is rejected",
			endpoint: "localhost:4317",
			wantErr:  ErrInvalidEndpoint,
		},
		{
			name:     "missing host",
			endpoint: "http://",
			wantErr:  ErrInvalidEndpoint,
		},
		{
			name:     "unknown protocol",
			endpoint: "http://localhost:4317",
			protocol: "thrift",
			wantErr:  ErrUnsupportedProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OtelEndpoint = tt.endpoint
			cfg.OtelProtocol = tt.protocol

			got, err := cfg.Target()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExporterTargetString(t *testing.T) {
	target := ExporterTarget{Protocol: ProtocolGRPC, Host: "localhost:4317", Insecure: true}
	assert.Equal(t, "http://localhost:4317 (grpc)", target.String())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "  "
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxQueueSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxExportBatchSize = cfg.MaxQueueSize + 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.OtelEndpoint = "grpc://localhost:4317"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidEndpoint)
}

func TestConfigSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceSources = []string{"Billing", " ", DefaultControllerSource, "Billing"}

	assert.Equal(t, []string{
		"Billing",
		DefaultControllerSource,
		WebFrameworkSource,
		HTTPClientSource,
	}, cfg.Sources())
	assert.Equal(t, "Billing", cfg.controllerSource())

	cfg.TraceSources = nil
	assert.Equal(t, DefaultControllerSource, cfg.controllerSource())
	assert.ElementsMatch(t, []string{WebFrameworkSource, HTTPClientSource}, cfg.Sources())
}

func TestConfigSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "Staging"

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, "TestOpenTelemetry", s.ServiceName)
	assert.Equal(t, "Staging", s.Environment)
	assert.Equal(t, "localhost:4317", s.Target.Host)
	assert.Contains(t, s.Sources, DefaultControllerSource)

	again, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, IsDevelopment("Development"))
	assert.True(t, IsDevelopment("development"))
	assert.True(t, IsDevelopment("dev"))
	assert.False(t, IsDevelopment("Production"))
	assert.False(t, IsDevelopment(""))
}
