package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("action", "MOVE"),
		attribute.String("tag_id", "T1"),
		attribute.String("outcome", "ok"),
	)
	require.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("tag_id"), attr.Key)
	}
}

func TestRecordOnNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTagMutation(context.Background(), "MOVE", "ok")
		m.RecordVerifyReplay(context.Background())
		m.RecordExport(context.Background(), "archive", nil)
		m.RecordRateLimitDenied(context.Background(), "/api/tags/verify", "device-rate")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordTagMutation(context.Background(), "REGISTER", "ok")
}

func TestCountersReachReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := New(Config{ServiceName: "rfidtrack-test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordTagMutation(ctx, "MOVE", "ok")
	m.RecordTagMutation(ctx, "MOVE", "ok")
	m.RecordExport(ctx, "archive", errors.New("bucket gone"))
	m.RecordRateLimitDenied(ctx, "/api/tags/verify", "device-rate")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				totals[metric.Name] += point.Value
			}
		}
	}

	assert.Equal(t, int64(2), totals["rfidtrack_tag_mutations_total"])
	assert.Equal(t, int64(1), totals["rfidtrack_exports_total"])
	assert.Equal(t, int64(1), totals["rfidtrack_write_rate_limit_total"])
}

func TestRecordExportOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := New(Config{}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordExport(ctx, "download", nil)
	m.RecordExport(ctx, "archive", errors.New("bucket gone"))
	m.RecordExport(ctx, "archive", errors.New("bucket gone"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	byOutcome := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != "rfidtrack_exports_total" {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				outcome, _ := point.Attributes.Value("outcome")
				byOutcome[outcome.AsString()] += point.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{OutcomeOK: 1, OutcomeError: 2}, byOutcome)
}
