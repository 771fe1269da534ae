package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		opts             []Option
		expectNoOpTracer bool
		expectNoOpMeter  bool
		expectError      bool
	}{
		{
			name:             "no config yields no-op providers",
			expectNoOpTracer: true,
			expectNoOpMeter:  true,
		},
		{
			name:             "disabled telemetry yields no-op providers",
			opts:             []Option{WithTelemetryConfig(&Config{Enabled: false})},
			expectNoOpTracer: true,
			expectNoOpMeter:  true,
		},
		{
			name: "tracing and metrics disabled individually",
			opts: []Option{WithTelemetryConfig(&Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: false},
				Metrics: &MetricsConfig{Enabled: false},
			})},
			expectNoOpTracer: true,
			expectNoOpMeter:  true,
		},
		{
			name: "prometheus metrics create an SDK meter provider",
			opts: []Option{WithTelemetryConfig(&Config{
				Enabled: true,
				Metrics: &MetricsConfig{Enabled: true, Prometheus: true},
			})},
			expectNoOpTracer: true,
		},
		{
			name: "invalid sampling is rejected",
			opts: []Option{WithTelemetryConfig(&Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 1.5},
			})},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tel, err := New(ctx, tt.opts...)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid telemetry configuration")
				return
			}
			require.NoError(t, err)

			if tt.expectNoOpTracer {
				_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
				assert.True(t, ok, "expected no-op tracer provider")
			} else {
				_, ok := tel.TracerProvider().(*sdktrace.TracerProvider)
				assert.True(t, ok, "expected SDK tracer provider")
			}

			if tt.expectNoOpMeter {
				_, ok := tel.MeterProvider().(noop.MeterProvider)
				assert.True(t, ok, "expected no-op meter provider")
			} else {
				_, ok := tel.MeterProvider().(*sdkmetric.MeterProvider)
				assert.True(t, ok, "expected SDK meter provider")
			}

			require.NoError(t, tel.Shutdown(ctx))
		})
	}
}

func TestTelemetry_MetricsHandler(t *testing.T) {
	t.Parallel()

	t.Run("nil when telemetry is disabled", func(t *testing.T) {
		t.Parallel()
		tel, err := New(context.Background())
		require.NoError(t, err)
		assert.Nil(t, tel.MetricsHandler())
	})

	t.Run("serves engine metrics in prometheus format", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		tel, err := New(ctx, WithTelemetryConfig(&Config{
			Enabled: true,
			Metrics: &MetricsConfig{Enabled: true, Prometheus: true},
		}))
		require.NoError(t, err)
		defer func() { _ = tel.Shutdown(ctx) }()

		bus, err := NewBusMetrics(tel.MeterProvider())
		require.NoError(t, err)
		bus.RecordPublished(ctx, "container-updated")

		rec := httptest.NewRecorder()
		tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "status_engine_bus_published"), "missing bus counter")
		assert.True(t, strings.Contains(string(body), "go_goroutines"), "missing go collector")
	})
}

func TestTelemetry_ShutdownWithOTLPExporters(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	tel, err := New(ctx, WithTelemetryConfig(&Config{
		Enabled:  true,
		Endpoint: strings.TrimPrefix(server.URL, "http://"),
		Insecure: true,
		Tracing:  &TracingConfig{Enabled: true, Sampling: 1.0},
		Metrics:  &MetricsConfig{Enabled: true, OTLP: true},
	}))
	require.NoError(t, err)

	_, okTracer := tel.TracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, okTracer, "expected SDK tracer provider")
	_, okMeter := tel.MeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, okMeter, "expected SDK meter provider")

	require.NoError(t, tel.Shutdown(ctx))
}

func TestProviderOptions(t *testing.T) {
	t.Parallel()

	tc := &tracerProviderConfig{}
	WithTracerServiceName("svc")(tc)
	WithTracerServiceVersion("1.0.0")(tc)
	WithTracerEndpoint("collector:4318")(tc)
	WithTracerInsecure(true)(tc)
	assert.Equal(t, &tracerProviderConfig{serviceName: "svc", serviceVersion: "1.0.0", endpoint: "collector:4318", insecure: true}, tc)

	mc := &meterProviderConfig{}
	metrics := &MetricsConfig{Enabled: true, OTLP: true}
	WithMeterServiceName("svc")(mc)
	WithMetricsConfig(metrics)(mc)
	WithMeterEndpoint("collector:4318")(mc)
	assert.Equal(t, "svc", mc.serviceName)
	assert.Equal(t, metrics, mc.metricsConfig)
	assert.Equal(t, "collector:4318", mc.endpoint)
}
