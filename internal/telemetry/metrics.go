// Package telemetry provides OpenTelemetry instrumentation for the status engine.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// BusMetricsMeterName is the name used for the event bus meter
	BusMetricsMeterName = "github.com/integrio/status-engine/eventbus"

	// SchedulerMetricsMeterName is the name used for the scheduler meter
	SchedulerMetricsMeterName = "github.com/integrio/status-engine/scheduler"

	// DevModeMetricsMeterName is the name used for the dev-mode meter
	DevModeMetricsMeterName = "github.com/integrio/status-engine/devmode"
)

// BusMetrics holds the OpenTelemetry instruments for event bus delivery
type BusMetrics struct {
	published metric.Int64Counter
	delivered metric.Int64Counter
}

// NewBusMetrics creates a new BusMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewBusMetrics(provider metric.MeterProvider) (*BusMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(BusMetricsMeterName)

	published, err := meter.Int64Counter(
		"status_engine_bus_published_total",
		metric.WithDescription("Number of events published on the bus"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	delivered, err := meter.Int64Counter(
		"status_engine_bus_delivered_total",
		metric.WithDescription("Number of events handed to subscribers"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &BusMetrics{
		published: published,
		delivered: delivered,
	}, nil
}

// RecordPublished counts one published event
func (m *BusMetrics) RecordPublished(ctx context.Context, topic string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

// RecordDelivered counts one delivery to a subscriber
func (m *BusMetrics) RecordDelivered(ctx context.Context, topic, subscriber string, success bool) {
	if m == nil || m.delivered == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("topic", topic),
		attribute.String("subscriber", subscriber),
		attribute.Bool("success", success),
	}

	m.delivered.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// SchedulerMetrics holds the OpenTelemetry instruments for periodic tasks
type SchedulerMetrics struct {
	runDuration metric.Float64Histogram
	skipped     metric.Int64Counter
}

// NewSchedulerMetrics creates a new SchedulerMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSchedulerMetrics(provider metric.MeterProvider) (*SchedulerMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SchedulerMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"status_engine_task_duration_seconds",
		metric.WithDescription("Duration of scheduled task runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter(
		"status_engine_task_skipped_total",
		metric.WithDescription("Number of ticks skipped because the previous run was still in progress"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerMetrics{
		runDuration: runDuration,
		skipped:     skipped,
	}, nil
}

// RecordRun records the duration of one task run
func (m *SchedulerMetrics) RecordRun(ctx context.Context, task string, duration time.Duration, success bool) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("task", task),
		attribute.Bool("success", success),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSkip counts a skipped tick
func (m *SchedulerMetrics) RecordSkip(ctx context.Context, task string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("task", task)))
}

// DevModeMetrics holds the OpenTelemetry instruments for dev-mode remote calls
type DevModeMetrics struct {
	remoteCalls  metric.Int64Counter
	reloadLength metric.Float64Histogram
}

// NewDevModeMetrics creates a new DevModeMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDevModeMetrics(provider metric.MeterProvider) (*DevModeMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DevModeMetricsMeterName)

	remoteCalls, err := meter.Int64Counter(
		"status_engine_devmode_remote_calls_total",
		metric.WithDescription("Number of remote calls made to dev-mode containers"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	reloadLength, err := meter.Float64Histogram(
		"status_engine_devmode_reload_duration_seconds",
		metric.WithDescription("Duration of complete upload and reload sequences in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return &DevModeMetrics{
		remoteCalls:  remoteCalls,
		reloadLength: reloadLength,
	}, nil
}

// RecordRemoteCall counts one remote call by operation and outcome.
// outcome is one of "success", "failure" or "short_circuit".
func (m *DevModeMetrics) RecordRemoteCall(ctx context.Context, operation, outcome string) {
	if m == nil || m.remoteCalls == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	}

	m.remoteCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReload records the duration of a reload sequence
func (m *DevModeMetrics) RecordReload(ctx context.Context, projectID string, duration time.Duration, success bool) {
	if m == nil || m.reloadLength == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("project", projectID),
		attribute.Bool("success", success),
	}

	m.reloadLength.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
