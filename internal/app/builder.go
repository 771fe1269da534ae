package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/api"
	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/backend/docker"
	"github.com/integrio/status-engine/internal/backend/kubernetes"
	"github.com/integrio/status-engine/internal/breaker"
	"github.com/integrio/status-engine/internal/config"
	"github.com/integrio/status-engine/internal/devmode"
	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/httpclient"
	"github.com/integrio/status-engine/internal/projects"
	"github.com/integrio/status-engine/internal/push"
	"github.com/integrio/status-engine/internal/scheduler"
	"github.com/integrio/status-engine/internal/service"
	"github.com/integrio/status-engine/internal/store"
	"github.com/integrio/status-engine/internal/telemetry"
	"github.com/integrio/status-engine/internal/versions"
)

const (
	defaultHTTPAddress     = config.DefaultAddress
	defaultRequestTimeout  = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// AdapterFactory creates the backend adapter feeding sink
type AdapterFactory func(sink *backend.Sink) (backend.Adapter, error)

// EngineAppOptions is a function that configures the engine app builder
type EngineAppOptions func(*engineAppConfig) error

// engineAppConfig collects the builder inputs. Component overrides exist for tests.
type engineAppConfig struct {
	config *config.Config
	logger *zap.SugaredLogger

	adapterFactory AdapterFactory
	fileSource     devmode.FileSource
	httpClient     httpclient.Client
	telemetry      *telemetry.Telemetry

	// HTTP server options
	address         string
	middlewares     []func(http.Handler) http.Handler
	requestTimeout  time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

func baseConfig(opts ...EngineAppOptions) (*engineAppConfig, error) {
	cfg := &engineAppConfig{
		address:         defaultHTTPAddress,
		requestTimeout:  defaultRequestTimeout,
		readTimeout:     defaultReadTimeout,
		writeTimeout:    defaultWriteTimeout,
		idleTimeout:     defaultIdleTimeout,
		shutdownTimeout: defaultShutdownTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.logger == nil {
		cfg.logger = zap.S()
	}
	return cfg, nil
}

// NewEngineApp builds every component of the engine. Nothing runs until Start.
func NewEngineApp(ctx context.Context, opts ...EngineAppOptions) (*EngineApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.telemetry == nil {
		if t := cfg.config.Telemetry; t != nil && t.ServiceVersion == "" {
			t.ServiceVersion = versions.GetVersionInfo().Version
		}
		cfg.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	components, err := buildComponents(cfg)
	if err != nil {
		_ = cfg.telemetry.Shutdown(ctx)
		return nil, err
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		components.detach()
		_ = cfg.telemetry.Shutdown(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	return &EngineApp{
		config:          cfg.config,
		components:      components,
		httpServer:      httpServer,
		logger:          cfg.logger,
		shutdownTimeout: cfg.shutdownTimeout,
		ctx:             appCtx,
		cancelFunc:      cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithLogger sets the parent logger; components log under named children
func WithLogger(logger *zap.SugaredLogger) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		cfg.logger = logger
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithShutdownTimeout bounds the graceful HTTP shutdown
func WithShutdownTimeout(d time.Duration) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %s", d)
		}
		cfg.shutdownTimeout = d
		return nil
	}
}

// WithAdapterFactory replaces the adapter selected by backend.type (for testing)
func WithAdapterFactory(f AdapterFactory) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		cfg.adapterFactory = f
		return nil
	}
}

// WithFileSource replaces the project file source read from the config (for testing)
func WithFileSource(files devmode.FileSource) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		cfg.fileSource = files
		return nil
	}
}

// WithHTTPClient replaces the client used for dev-mode calls (for testing)
func WithHTTPClient(c httpclient.Client) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithTelemetry uses already initialized telemetry providers
func WithTelemetry(t *telemetry.Telemetry) EngineAppOptions {
	return func(cfg *engineAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// buildComponents wires store, bus, adapter, controller, hub, scheduler and service
func buildComponents(b *engineAppConfig) (*AppComponents, error) {
	logger := b.logger
	logger.Info("Initializing engine components")

	meterProvider := b.telemetry.MeterProvider()
	busMetrics, err := telemetry.NewBusMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus metrics: %w", err)
	}
	schedulerMetrics, err := telemetry.NewSchedulerMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler metrics: %w", err)
	}
	devModeMetrics, err := telemetry.NewDevModeMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create dev-mode metrics: %w", err)
	}

	env := b.config.Environment
	c := &AppComponents{
		Store:     store.New(),
		Bus:       eventbus.New(logger.Named("eventbus"), eventbus.WithMetrics(busMetrics)),
		Ready:     eventbus.NewSignal(),
		Telemetry: b.telemetry,
	}
	c.unsubscribe = append(c.unsubscribe, c.Ready.FireOn(c.Bus, eventbus.TopicSystemReady))

	sink := backend.NewSink(c.Store, c.Bus, env, logger.Named("sink"))

	factory := b.adapterFactory
	if factory == nil {
		factory = func(sink *backend.Sink) (backend.Adapter, error) {
			return newAdapter(b.config, sink, logger)
		}
	}
	c.Adapter, err = factory(sink)
	if err != nil {
		c.detach()
		return nil, fmt.Errorf("failed to create %s adapter: %w", b.config.Backend.Type, err)
	}

	c.Controller, err = buildController(b, c.Adapter, sink, c.Bus, devModeMetrics)
	if err != nil {
		c.detach()
		return nil, fmt.Errorf("failed to create dev-mode controller: %w", err)
	}
	c.unsubscribe = append(c.unsubscribe, c.Controller.Subscribe(c.Bus))

	c.Hub = push.NewHub(logger.Named("push"))
	c.unsubscribe = append(c.unsubscribe, c.Hub.Subscribe(c.Bus))

	c.Scheduler, err = buildScheduler(b.config, c, schedulerMetrics, logger)
	if err != nil {
		c.detach()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	c.Service = service.New(c.Store, c.Bus, c.Ready, env, service.WithLogger(logger.Named("service")))

	logger.Infow("Engine components initialized", "backend", c.Adapter.Kind(), "environment", env)
	return c, nil
}

// newAdapter creates the adapter selected by backend.type
func newAdapter(cfg *config.Config, sink *backend.Sink, logger *zap.SugaredLogger) (backend.Adapter, error) {
	kind, err := backend.ParseKind(cfg.Backend.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case backend.KindDocker:
		d := cfg.Backend.Docker
		opts := []docker.Option{
			docker.WithDevModePort(cfg.DevMode.Port),
			docker.WithPollInterval(config.Duration(d.PollInterval, 5*time.Second)),
			docker.WithLogger(logger.Named("docker")),
		}
		if d.Host != "" {
			opts = append(opts, docker.WithHost(d.Host))
		}
		if d.Network != "" {
			opts = append(opts, docker.WithNetwork(d.Network))
		}
		if d.LockFile != "" {
			opts = append(opts, docker.WithLockFile(d.LockFile))
		}
		return docker.New(sink, opts...)
	default:
		k := cfg.Backend.Kubernetes
		opts := []kubernetes.Option{
			kubernetes.WithNamespace(k.Namespace),
			kubernetes.WithDevModePort(cfg.DevMode.Port),
			kubernetes.WithLogger(logger.Named("kubernetes")),
		}
		if k.LabelSelector != "" {
			opts = append(opts, kubernetes.WithLabelSelector(k.LabelSelector))
		}
		if k.Kubeconfig != "" {
			opts = append(opts, kubernetes.WithKubeconfig(k.Kubeconfig))
		}
		if k.PodTemplate != "" {
			opts = append(opts, kubernetes.WithPodTemplateFile(k.PodTemplate))
		}
		return kubernetes.New(sink, opts...)
	}
}

func buildController(
	b *engineAppConfig,
	adapter backend.Adapter,
	sink *backend.Sink,
	bus *eventbus.Bus,
	metrics *telemetry.DevModeMetrics,
) (*devmode.Controller, error) {
	cfg := b.config
	settings := breakerSettings(cfg.Breaker)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid breaker settings: %w", err)
	}

	files := b.fileSource
	if files == nil {
		var err error
		files, err = newFileSource(cfg.Projects)
		if err != nil {
			return nil, err
		}
	}

	opts := []devmode.Option{
		devmode.WithBreakers(breaker.NewRegistry(settings, b.logger.Named("breaker"))),
		devmode.WithMetrics(metrics),
		devmode.WithTracer(b.telemetry.TracerProvider().Tracer(devmode.TracerName)),
		devmode.WithImage(cfg.DevMode.Image),
		devmode.WithPort(cfg.DevMode.Port),
		devmode.WithRequestTimeout(config.Duration(cfg.DevMode.RequestTimeout, 800*time.Millisecond)),
		devmode.WithIntrospection(cfg.DevMode.Introspection),
		devmode.WithLogger(b.logger.Named("devmode")),
	}
	if cfg.DevMode.ReloadTimeout != "" {
		opts = append(opts, devmode.WithReloadTimeout(config.Duration(cfg.DevMode.ReloadTimeout, 0)))
	}
	if files != nil {
		opts = append(opts, devmode.WithFileSource(files))
	}
	if b.httpClient != nil {
		opts = append(opts, devmode.WithHTTPClient(b.httpClient))
	}
	return devmode.New(adapter, sink, bus, opts...)
}

func breakerSettings(c config.BreakerConfig) breaker.Settings {
	def := breaker.DefaultSettings()
	return breaker.Settings{
		RequestVolume:    c.RequestVolume,
		FailureRatio:     c.FailureRatio,
		Window:           config.Duration(c.Window, def.Window),
		Cooldown:         config.Duration(c.Cooldown, def.Cooldown),
		HalfOpenRequests: c.HalfOpenRequests,
	}
}

// newFileSource opens the configured project files. It returns nil when no
// location is configured; reloads then fail with an explicit message.
func newFileSource(c config.ProjectsConfig) (devmode.FileSource, error) {
	switch {
	case c.Repository != "":
		src, err := projects.OpenGitSource(c.Repository)
		if err != nil {
			return nil, fmt.Errorf("failed to open project repository: %w", err)
		}
		return src, nil
	case c.Directory != "":
		return projects.NewDirSource(osfs.New(c.Directory)), nil
	default:
		return nil, nil
	}
}

func buildScheduler(
	cfg *config.Config,
	c *AppComponents,
	metrics *telemetry.SchedulerMetrics,
	logger *zap.SugaredLogger,
) (*scheduler.Scheduler, error) {
	s := cfg.Scheduler
	sched := scheduler.New(c.Ready,
		scheduler.WithMetrics(metrics),
		scheduler.WithLogger(logger.Named("scheduler")),
	)

	tasks := []scheduler.Task{
		scheduler.ContainerStats(c.Adapter, config.Duration(s.StatsInterval, scheduler.DefaultStatsInterval)),
		scheduler.CamelStatus(c.Controller, config.Duration(s.CamelInterval, scheduler.DefaultCamelInterval)),
		scheduler.PresenceCleanup(c.Store,
			config.Duration(s.PresenceInterval, scheduler.DefaultPresenceInterval),
			config.Duration(s.PresenceMaxAge, scheduler.DefaultPresenceMaxAge),
			time.Now),
		scheduler.SessionCleanup(c.Store, config.Duration(s.SessionInterval, scheduler.DefaultSessionInterval), time.Now),
		scheduler.Keepalive(c.Hub, config.Duration(s.KeepaliveInterval, scheduler.DefaultKeepalive)),
	}
	for _, t := range tasks {
		if err := sched.Add(t); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// buildHTTPServer builds the operational HTTP server with router and middleware
func buildHTTPServer(b *engineAppConfig, c *AppComponents) (*http.Server, error) {
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware,
		}
	}

	httpMetrics, err := telemetry.NewHTTPMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	middlewares := append([]func(http.Handler) http.Handler{
		httpMetrics.Middleware,
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
	}, b.middlewares...)

	router := api.NewServer(c.Service,
		api.WithMiddlewares(middlewares...),
		api.WithRequestTimeout(b.requestTimeout),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
		api.WithPushHandler(c.Hub),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	b.logger.Infow("HTTP server configured", "address", b.address)
	return server, nil
}

// detach removes every bus subscriber registered so far
func (c *AppComponents) detach() {
	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	c.unsubscribe = nil
}
