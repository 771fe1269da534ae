// Package config provides configuration loading and management for the status engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/telemetry"
)

// EnvPrefix prefixes every environment variable read by the CLI
const EnvPrefix = "STATUS_ENGINE"

// Defaults applied to unset fields
const (
	DefaultEnvironment       = "dev"
	DefaultAddress           = ":9090"
	DefaultBackend           = backend.KindKubernetes
	DefaultNamespace         = "default"
	DefaultDevModePort       = 8080
	DefaultRequestTimeout    = "800ms"
	DefaultPollInterval      = "5s"
	DefaultStatsInterval     = "10s"
	DefaultCamelInterval     = "5s"
	DefaultPresenceInterval  = "30s"
	DefaultPresenceMaxAge    = "2m"
	DefaultSessionInterval   = "10m"
	DefaultKeepaliveInterval = "30s"
	DefaultRequestVolume     = 5
	DefaultFailureRatio      = 0.5
	DefaultBreakerWindow     = "1m"
	DefaultBreakerCooldown   = "30s"
	DefaultHalfOpenRequests  = 1
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Environment is the deployment environment every observed resource is recorded under
	Environment string `yaml:"environment"`

	// LogLevel is one of debug, info, warn or error
	LogLevel string `yaml:"logLevel,omitempty"`

	// LogFormat is json or console
	LogFormat string `yaml:"logFormat,omitempty"`

	// Address is the listen address of the operational HTTP routes
	Address string `yaml:"address,omitempty"`

	Backend   BackendConfig     `yaml:"backend"`
	DevMode   DevModeConfig     `yaml:"devMode"`
	Breaker   BreakerConfig     `yaml:"breaker,omitempty"`
	Scheduler SchedulerConfig   `yaml:"scheduler,omitempty"`
	Projects  ProjectsConfig    `yaml:"projects,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// BackendConfig selects and configures the active adapter
type BackendConfig struct {
	// Type is kubernetes or docker
	Type string `yaml:"type"`

	Kubernetes *KubernetesConfig `yaml:"kubernetes,omitempty"`
	Docker     *DockerConfig     `yaml:"docker,omitempty"`
}

// KubernetesConfig defines the cluster adapter settings
type KubernetesConfig struct {
	// Namespace is the single namespace the adapter watches
	Namespace string `yaml:"namespace,omitempty"`

	// LabelSelector narrows the watched objects
	LabelSelector string `yaml:"labelSelector,omitempty"`

	// Kubeconfig is used outside the cluster; in-cluster config is used when empty
	Kubeconfig string `yaml:"kubeconfig,omitempty"`

	// PodTemplate is a YAML pod manifest dev-mode pods are built from
	PodTemplate string `yaml:"podTemplate,omitempty"`
}

// DockerConfig defines the container-runtime adapter settings
type DockerConfig struct {
	// Host is the daemon address; the environment default is used when empty
	Host string `yaml:"host,omitempty"`

	// PollInterval is the full refresh cadence (e.g., "5s")
	PollInterval string `yaml:"pollInterval,omitempty"`

	// Network is joined by dev-mode containers
	Network string `yaml:"network,omitempty"`

	// LockFile guards against two engines driving the same daemon
	LockFile string `yaml:"lockFile,omitempty"`
}

// DevModeConfig defines the dev-mode containers and the calls made to them.
// ReloadTimeout, when set, overrides RequestTimeout for the reload trigger only.
type DevModeConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Image          string   `yaml:"image"`
	RequestTimeout string   `yaml:"requestTimeout,omitempty"`
	ReloadTimeout  string   `yaml:"reloadTimeout,omitempty"`
	Introspection  []string `yaml:"introspection,omitempty"`
}

// BreakerConfig defines the circuit guarding dev-mode calls
type BreakerConfig struct {
	RequestVolume    uint32  `yaml:"requestVolume,omitempty"`
	FailureRatio     float64 `yaml:"failureRatio,omitempty"`
	Window           string  `yaml:"window,omitempty"`
	Cooldown         string  `yaml:"cooldown,omitempty"`
	HalfOpenRequests uint32  `yaml:"halfOpenRequests,omitempty"`
}

// SchedulerConfig defines the periodic task cadence
type SchedulerConfig struct {
	StatsInterval     string `yaml:"statsInterval,omitempty"`
	CamelInterval     string `yaml:"camelInterval,omitempty"`
	PresenceInterval  string `yaml:"presenceInterval,omitempty"`
	PresenceMaxAge    string `yaml:"presenceMaxAge,omitempty"`
	SessionInterval   string `yaml:"sessionInterval,omitempty"`
	KeepaliveInterval string `yaml:"keepaliveInterval,omitempty"`
}

// ProjectsConfig defines where project files are read from on reload.
// Repository takes precedence over Directory.
type ProjectsConfig struct {
	// Repository is a local Git working copy; files are read from the HEAD commit
	Repository string `yaml:"repository,omitempty"`

	// Directory is a plain directory holding one sub-directory per project
	Directory string `yaml:"directory,omitempty"`
}

// LoadConfig loads, defaults and validates configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.Environment, DefaultEnvironment)
	setDefault(&c.Address, DefaultAddress)
	setDefault(&c.Backend.Type, string(DefaultBackend))

	if c.Backend.Kubernetes == nil {
		c.Backend.Kubernetes = &KubernetesConfig{}
	}
	setDefault(&c.Backend.Kubernetes.Namespace, DefaultNamespace)

	if c.Backend.Docker == nil {
		c.Backend.Docker = &DockerConfig{}
	}
	setDefault(&c.Backend.Docker.PollInterval, DefaultPollInterval)

	if c.DevMode.Port == 0 {
		c.DevMode.Port = DefaultDevModePort
	}
	setDefault(&c.DevMode.RequestTimeout, DefaultRequestTimeout)
	if c.DevMode.Introspection == nil {
		c.DevMode.Introspection = []string{"context", "route", "health"}
	}

	if c.Breaker.RequestVolume == 0 {
		c.Breaker.RequestVolume = DefaultRequestVolume
	}
	if c.Breaker.FailureRatio == 0 {
		c.Breaker.FailureRatio = DefaultFailureRatio
	}
	setDefault(&c.Breaker.Window, DefaultBreakerWindow)
	setDefault(&c.Breaker.Cooldown, DefaultBreakerCooldown)
	if c.Breaker.HalfOpenRequests == 0 {
		c.Breaker.HalfOpenRequests = DefaultHalfOpenRequests
	}

	s := &c.Scheduler
	setDefault(&s.StatsInterval, DefaultStatsInterval)
	setDefault(&s.CamelInterval, DefaultCamelInterval)
	setDefault(&s.PresenceInterval, DefaultPresenceInterval)
	setDefault(&s.PresenceMaxAge, DefaultPresenceMaxAge)
	setDefault(&s.SessionInterval, DefaultSessionInterval)
	setDefault(&s.KeepaliveInterval, DefaultKeepaliveInterval)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if _, err := backend.ParseKind(c.Backend.Type); err != nil {
		errs = append(errs, fmt.Errorf("backend.type: %w", err))
	}
	if c.Backend.Docker != nil && c.Backend.Docker.PollInterval != "" {
		errs = append(errs, validateDuration("backend.docker.pollInterval", c.Backend.Docker.PollInterval))
	}

	errs = append(errs, c.DevMode.validate()...)
	errs = append(errs, c.Breaker.validate()...)
	errs = append(errs, c.Scheduler.validate()...)

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (d *DevModeConfig) validate() []error {
	var errs []error
	if d.Port <= 0 || d.Port > 65535 {
		errs = append(errs, fmt.Errorf("devMode.port: must be between 1 and 65535, got %d", d.Port))
	}
	if d.Image == "" {
		errs = append(errs, errors.New("devMode.image: is required"))
	} else if _, err := name.ParseReference(d.Image); err != nil {
		errs = append(errs, fmt.Errorf("devMode.image: %w", err))
	}
	errs = append(errs, validateDuration("devMode.requestTimeout", d.RequestTimeout))
	if d.ReloadTimeout != "" {
		errs = append(errs, validateDuration("devMode.reloadTimeout", d.ReloadTimeout))
	}
	for i, n := range d.Introspection {
		if n == "" {
			errs = append(errs, fmt.Errorf("devMode.introspection[%d]: name is empty", i))
		}
	}
	return errs
}

func (b *BreakerConfig) validate() []error {
	errs := []error{
		validateDuration("breaker.window", b.Window),
		validateDuration("breaker.cooldown", b.Cooldown),
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		errs = append(errs, fmt.Errorf("breaker.failureRatio: must be in (0, 1], got %v", b.FailureRatio))
	}
	return errs
}

func (s *SchedulerConfig) validate() []error {
	return []error{
		validateDuration("scheduler.statsInterval", s.StatsInterval),
		validateDuration("scheduler.camelInterval", s.CamelInterval),
		validateDuration("scheduler.presenceInterval", s.PresenceInterval),
		validateDuration("scheduler.presenceMaxAge", s.PresenceMaxAge),
		validateDuration("scheduler.sessionInterval", s.SessionInterval),
		validateDuration("scheduler.keepaliveInterval", s.KeepaliveInterval),
	}
}

func validateDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", field, value)
	}
	return nil
}

// Duration parses a validated duration field. Unparseable values yield def.
func Duration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// BackendKind returns the validated adapter type
func (c *Config) BackendKind() backend.Kind {
	kind, err := backend.ParseKind(c.Backend.Type)
	if err != nil {
		return DefaultBackend
	}
	return kind
}
