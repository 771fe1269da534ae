package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectScope(t *testing.T, reader *sdkmetric.ManualReader, scopeName string) []metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name == scopeName {
			return scope.Metrics
		}
	}
	return nil
}

func TestNewMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	bus, err := NewBusMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, bus)

	sched, err := NewSchedulerMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, sched)

	dev, err := NewDevModeMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, dev)
}

func TestMetrics_NilReceiversAreNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var bus *BusMetrics
	bus.RecordPublished(ctx, "container-updated")
	bus.RecordDelivered(ctx, "container-updated", "push", true)

	var sched *SchedulerMetrics
	sched.RecordRun(ctx, "keepalive", time.Second, true)
	sched.RecordSkip(ctx, "keepalive")

	var dev *DevModeMetrics
	dev.RecordRemoteCall(ctx, "upload", "success")
	dev.RecordReload(ctx, "orders", time.Second, false)
}

func TestBusMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewBusMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	metrics.RecordPublished(context.Background(), "container-updated")
	metrics.RecordPublished(context.Background(), "container-updated")
	metrics.RecordDelivered(context.Background(), "container-updated", "push", true)

	found := collectScope(t, reader, BusMetricsMeterName)
	require.Len(t, found, 2)

	for _, m := range found {
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		switch m.Name {
		case "status_engine_bus_published_total":
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		case "status_engine_bus_delivered_total":
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
		default:
			t.Fatalf("unexpected metric %s", m.Name)
		}
	}
}

func TestSchedulerMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewSchedulerMetrics(mp)
	require.NoError(t, err)

	metrics.RecordRun(context.Background(), "presence-cleanup", 20*time.Millisecond, true)
	metrics.RecordSkip(context.Background(), "camel-status")

	found := collectScope(t, reader, SchedulerMetricsMeterName)
	names := make([]string, 0, len(found))
	for _, m := range found {
		names = append(names, m.Name)
		if m.Name == "status_engine_task_duration_seconds" {
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			require.Len(t, hist.DataPoints, 1)
			assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
		}
	}
	assert.ElementsMatch(t, []string{"status_engine_task_duration_seconds", "status_engine_task_skipped_total"}, names)
}

func TestDevModeMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewDevModeMetrics(mp)
	require.NoError(t, err)

	metrics.RecordRemoteCall(context.Background(), "upload", "success")
	metrics.RecordRemoteCall(context.Background(), "reload", "short_circuit")
	metrics.RecordReload(context.Background(), "orders", 300*time.Millisecond, true)

	found := collectScope(t, reader, DevModeMetricsMeterName)
	require.Len(t, found, 2)
}
