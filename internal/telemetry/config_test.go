package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	empty := &Config{}
	assert.Equal(t, DefaultServiceName, empty.GetServiceName())
	assert.Equal(t, "unknown", empty.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, empty.GetEndpoint())
	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())

	set := &Config{ServiceName: "engine", ServiceVersion: "1.2.3", Endpoint: "collector:4318"}
	assert.Equal(t, "engine", set.GetServiceName())
	assert.Equal(t, "1.2.3", set.GetServiceVersion())
	assert.Equal(t, "collector:4318", set.GetEndpoint())
	assert.Equal(t, 0.5, (&TracingConfig{Sampling: 0.5}).GetSampling())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		config    *Config
		expectErr string
	}{
		{
			name:   "nil config is valid",
			config: nil,
		},
		{
			name:   "disabled config skips validation",
			config: &Config{Enabled: false, Tracing: &TracingConfig{Enabled: true, Sampling: 7}},
		},
		{
			name: "valid tracing and prometheus metrics",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 1},
				Metrics: &MetricsConfig{Enabled: true, Prometheus: true},
			},
		},
		{
			name:      "sampling out of range",
			config:    &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}},
			expectErr: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:      "metrics without exporter",
			config:    &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true}},
			expectErr: "metrics: at least one of otlp or prometheus must be enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.expectErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.expectErr)
		})
	}
}
