package docker

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultDevModePort  = 8080
	defaultBindAddress  = "127.0.0.1"
	defaultStopTimeout  = 10
	logTailLines        = "200"
)

type adapterOptions struct {
	host         string
	client       Client
	pollInterval time.Duration
	network      string
	devModePort  int
	bindAddress  string
	lockFile     string
	logger       *zap.SugaredLogger
}

// Option configures the container-runtime adapter
type Option func(*adapterOptions) error

// WithHost connects to a specific daemon address
func WithHost(host string) Option {
	return func(o *adapterOptions) error {
		o.host = host
		return nil
	}
}

// WithClient uses an existing client instead of dialing the daemon
func WithClient(c Client) Option {
	return func(o *adapterOptions) error {
		if c == nil {
			return fmt.Errorf("docker client cannot be nil")
		}
		o.client = c
		return nil
	}
}

// WithPollInterval sets the full enumeration interval
func WithPollInterval(d time.Duration) Option {
	return func(o *adapterOptions) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %s", d)
		}
		o.pollInterval = d
		return nil
	}
}

// WithNetwork attaches dev-mode containers to a user-defined network
func WithNetwork(name string) Option {
	return func(o *adapterOptions) error {
		o.network = name
		return nil
	}
}

// WithDevModePort sets the port dev-mode containers listen on inside the container
func WithDevModePort(port int) Option {
	return func(o *adapterOptions) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid dev-mode port %d", port)
		}
		o.devModePort = port
		return nil
	}
}

// WithLockFile takes an exclusive file lock while the adapter runs so that a
// second engine on the same host refuses to start
func WithLockFile(path string) Option {
	return func(o *adapterOptions) error {
		o.lockFile = path
		return nil
	}
}

// WithLogger sets the adapter logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *adapterOptions) error {
		o.logger = logger
		return nil
	}
}

func buildOptions(opts []Option) (*adapterOptions, error) {
	o := &adapterOptions{
		pollInterval: defaultPollInterval,
		devModePort:  defaultDevModePort,
		bindAddress:  defaultBindAddress,
		logger:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}
