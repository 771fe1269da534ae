package devmode

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/breaker"
	"github.com/integrio/status-engine/internal/httpclient"
	"github.com/integrio/status-engine/internal/telemetry"
)

// TracerName is the name of the tracer used for command handling
const TracerName = "github.com/integrio/status-engine/devmode"

const defaultRequestTimeout = 800 * time.Millisecond

// DefaultIntrospection lists the runtime self-status documents collected by default
var DefaultIntrospection = []string{"context", "route", "health"}

type controllerOptions struct {
	client         httpclient.Client
	breakers       *breaker.Registry
	files          FileSource
	metrics        *telemetry.DevModeMetrics
	tracer         trace.Tracer
	image          string
	port           int
	requestTimeout time.Duration
	reloadTimeout  time.Duration
	introspection  []string
	logger         *zap.SugaredLogger
	now            func() time.Time
}

// Option configures a Controller
type Option func(*controllerOptions) error

// WithHTTPClient sets the client used for dev-mode calls
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *controllerOptions) error {
		o.client = c
		return nil
	}
}

// WithBreakers sets the circuit registry guarding dev-mode calls
func WithBreakers(r *breaker.Registry) Option {
	return func(o *controllerOptions) error {
		o.breakers = r
		return nil
	}
}

// WithFileSource sets where project files are read from on reload
func WithFileSource(files FileSource) Option {
	return func(o *controllerOptions) error {
		o.files = files
		return nil
	}
}

// WithMetrics records remote call outcomes and reload durations
func WithMetrics(m *telemetry.DevModeMetrics) Option {
	return func(o *controllerOptions) error {
		o.metrics = m
		return nil
	}
}

// WithTracer traces command handling
func WithTracer(tracer trace.Tracer) Option {
	return func(o *controllerOptions) error {
		o.tracer = tracer
		return nil
	}
}

// WithImage sets the image dev-mode containers run
func WithImage(image string) Option {
	return func(o *controllerOptions) error {
		o.image = image
		return nil
	}
}

// WithPort sets the port dev-mode containers listen on
func WithPort(port int) Option {
	return func(o *controllerOptions) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid dev-mode port %d", port)
		}
		o.port = port
		return nil
	}
}

// WithRequestTimeout bounds every single dev-mode call
func WithRequestTimeout(d time.Duration) Option {
	return func(o *controllerOptions) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %s", d)
		}
		o.requestTimeout = d
		return nil
	}
}

// WithReloadTimeout bounds the reload trigger call. Without it the trigger gets the
// request timeout like every other call.
func WithReloadTimeout(d time.Duration) Option {
	return func(o *controllerOptions) error {
		if d <= 0 {
			return fmt.Errorf("reload timeout must be positive, got %s", d)
		}
		o.reloadTimeout = d
		return nil
	}
}

// WithIntrospection sets the self-status documents collected from running containers
func WithIntrospection(names []string) Option {
	return func(o *controllerOptions) error {
		o.introspection = names
		return nil
	}
}

// WithLogger sets the controller logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *controllerOptions) error {
		o.logger = logger
		return nil
	}
}

// WithClock overrides the clock used to stamp results
func WithClock(now func() time.Time) Option {
	return func(o *controllerOptions) error {
		o.now = now
		return nil
	}
}
