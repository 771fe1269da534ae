package kubernetes

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/yaml"

	"github.com/integrio/status-engine/internal/backend"
)

const (
	defaultNamespace   = "default"
	defaultDevModePort = 8080
)

type adapterOptions struct {
	namespace     string
	labelSelector string
	kubeconfig    string
	restConfig    *rest.Config
	devModePort   int
	podTemplate   *corev1.PodTemplateSpec
	logger        *zap.SugaredLogger
}

// Option configures the cluster adapter
type Option func(*adapterOptions) error

// WithNamespace scopes the watches to one namespace
func WithNamespace(namespace string) Option {
	return func(o *adapterOptions) error {
		if namespace == "" {
			return fmt.Errorf("namespace cannot be empty")
		}
		o.namespace = namespace
		return nil
	}
}

// WithLabelSelector restricts the watches to workloads matching the selector
func WithLabelSelector(selector string) Option {
	return func(o *adapterOptions) error {
		if _, err := labels.Parse(selector); err != nil {
			return fmt.Errorf("invalid label selector %q: %w", selector, err)
		}
		o.labelSelector = selector
		return nil
	}
}

// WithKubeconfig loads the cluster connection from a kubeconfig file
func WithKubeconfig(path string) Option {
	return func(o *adapterOptions) error {
		o.kubeconfig = path
		return nil
	}
}

// WithRestConfig uses an explicit cluster connection
func WithRestConfig(cfg *rest.Config) Option {
	return func(o *adapterOptions) error {
		o.restConfig = cfg
		return nil
	}
}

// WithDevModePort sets the port dev-mode containers listen on
func WithDevModePort(port int) Option {
	return func(o *adapterOptions) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid dev-mode port %d", port)
		}
		o.devModePort = port
		return nil
	}
}

// WithPodTemplateFile reads a YAML PodTemplateSpec used as the base of dev-mode pods
func WithPodTemplateFile(path string) Option {
	return func(o *adapterOptions) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read pod template: %w", err)
		}
		tmpl, err := parsePodTemplate(data)
		if err != nil {
			return err
		}
		o.podTemplate = tmpl
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

func parsePodTemplate(data []byte) (*corev1.PodTemplateSpec, error) {
	var tmpl corev1.PodTemplateSpec
	if err := yaml.UnmarshalStrict(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse pod template: %w", err)
	}
	return &tmpl, nil
}

func buildOptions(opts []Option) (*adapterOptions, error) {
	o := &adapterOptions{
		namespace:     defaultNamespace,
		labelSelector: backend.ManagedSelector,
		devModePort:   defaultDevModePort,
		logger:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// New creates the cluster adapter and its controller manager. The manager is
// started by Adapter.Start.
func New(sink *backend.Sink, opts ...Option) (*Adapter, error) {
	if sink == nil {
		return nil, fmt.Errorf("status sink is required")
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	restConfig := o.restConfig
	if restConfig == nil {
		restConfig, err = loadRestConfig(o.kubeconfig)
		if err != nil {
			return nil, err
		}
	}

	selector, err := labels.Parse(o.labelSelector)
	if err != nil {
		return nil, fmt.Errorf("invalid label selector: %w", err)
	}

	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to add client-go scheme: %w", err)
	}

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: "0"},
		HealthProbeBindAddress: "0",
		Cache: cache.Options{
			DefaultNamespaces:    map[string]cache.Config{o.namespace: {}},
			DefaultLabelSelector: selector,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	a := newAdapter(mgr.GetClient(), clientset, sink, o, selector)
	a.mgr = mgr

	for _, r := range []interface{ SetupWithManager(ctrl.Manager) error }{a.pods, a.deployments, a.services} {
		if err := r.SetupWithManager(mgr); err != nil {
			return nil, fmt.Errorf("failed to setup controller with manager: %w", err)
		}
	}

	return a, nil
}

func loadRestConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		cfg, err := ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load cluster config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfig, err)
	}
	return cfg, nil
}
