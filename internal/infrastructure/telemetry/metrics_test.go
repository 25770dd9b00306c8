package telemetry_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/genintake/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// readerMeter returns a meter whose measurements can be pulled through
// the manual reader.
func readerMeter(t *testing.T) (metric.Meter, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return provider.Meter("telemetry.test"), reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Metrics{}
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "genintake-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("interview"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Minute,
		ServiceName:       "genintake-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, mp.IsEnabled())
	require.NotNil(t, mp.Meter("interview"))

	// No collector is listening; shutdown just has to return.
	shutdownCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = mp.Shutdown(shutdownCtx)
}

func TestCounter(t *testing.T) {
	meter, reader := readerMeter(t)
	ctx := context.Background()

	counter, err := telemetry.NewCounter(meter, "interview_turn_total", "Turns processed", "{turn}")
	require.NoError(t, err)

	counter.Inc(ctx, telemetry.AttrSpecialty.String("oncology"))
	counter.Inc(ctx, telemetry.AttrSpecialty.String("oncology"))
	counter.Add(ctx, 3, telemetry.AttrSpecialty.String("cardiology"))

	m := collectMetric(t, reader, "interview_turn_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	byTotal := map[int64]bool{}
	for _, dp := range sum.DataPoints {
		byTotal[dp.Value] = true
	}
	assert.True(t, byTotal[2])
	assert.True(t, byTotal[3])
}

func TestCounter_InvalidName(t *testing.T) {
	meter, _ := readerMeter(t)

	_, err := telemetry.NewCounter(meter, "not a valid name!", "desc", "{x}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create counter")
}

func TestHistogram(t *testing.T) {
	meter, reader := readerMeter(t)
	ctx := context.Background()

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "analysis_duration_seconds",
		Description: "Turn analysis latency",
		Unit:        "s",
		Boundaries:  telemetry.DBDurationBuckets,
	})
	require.NoError(t, err)

	hist.Record(ctx, 0.42)
	hist.RecordDuration(ctx, 250*time.Millisecond)

	m := collectMetric(t, reader, "analysis_duration_seconds")
	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)

	dp := data.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.InDelta(t, 0.67, dp.Sum, 0.0001)
	assert.Equal(t, telemetry.DBDurationBuckets, dp.Bounds)
}

func TestGauge(t *testing.T) {
	meter, reader := readerMeter(t)
	ctx := context.Background()

	gauge, err := telemetry.NewGauge(meter, "active_sessions", "Sessions currently active", "{session}")
	require.NoError(t, err)

	gauge.Record(ctx, 5)
	gauge.Record(ctx, 2)

	m := collectMetric(t, reader, "active_sessions")
	data, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	// Gauges keep the last written value.
	assert.Equal(t, int64(2), data.DataPoints[0].Value)
}

func TestDurationBuckets(t *testing.T) {
	assert.True(t, sort.Float64sAreSorted(telemetry.HTTPDurationBuckets))
	assert.True(t, sort.Float64sAreSorted(telemetry.DBDurationBuckets))
}
