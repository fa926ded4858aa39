package metricer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
)

func setupMetrics(t *testing.T, enabled bool) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	cfg := eto.DefaultConfig()
	cfg.EnableMetrics = enabled
	shutdown, err := eto.Init(context.Background(), cfg,
		eto.WithSpanExporter(tracetest.NewInMemoryExporter()),
		eto.WithMetricReader(reader),
		eto.WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestStage(t *testing.T) {
	reader := setupMetrics(t, true)
	ctx := context.Background()

	Stage(ctx, "static-files", OutcomeServed, "path", "/css/site.css")
	Stage(ctx, "static-files", OutcomeServed, "path", "/css/site.css")
	Stage(ctx, "authorization", OutcomeDenied, "dangling")

	metrics := collect(t, reader)
	require.Contains(t, metrics, "pipeline_stage_total")
	sum, ok := metrics["pipeline_stage_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		stage, _ := dp.Attributes.Value(attribute.Key("stage"))
		counts[stage.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), counts["static-files"])
	assert.Equal(t, int64(1), counts["authorization"])
}

func TestAction(t *testing.T) {
	reader := setupMetrics(t, true)

	Action(context.Background(), "Home", "Index", 1500*time.Microsecond, false)

	metrics := collect(t, reader)
	require.Contains(t, metrics, "mvc_action_duration_ms")
	hist, ok := metrics["mvc_action_duration_ms"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 0.001)
	failed, _ := hist.DataPoints[0].Attributes.Value(attribute.Key("failed"))
	assert.False(t, failed.AsBool())
}

func TestDisabledMetricsRecordNothing(t *testing.T) {
	reader := setupMetrics(t, false)

	Stage(context.Background(), "routing", OutcomeUnresolved)

	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	assert.Error(t, err, "reader is not registered while metrics are disabled")
}
