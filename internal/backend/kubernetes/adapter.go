package kubernetes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/status"
)

const (
	devModeContainerName = "integration"
	logTailLines         = 200
)

// Adapter is the cluster backend
type Adapter struct {
	mgr       ctrl.Manager
	client    client.Client
	clientset kubernetes.Interface
	sink      *backend.Sink
	namespace string
	selector  labels.Selector
	devPort   int
	template  *corev1.PodTemplateSpec
	logger    *zap.SugaredLogger

	pods        *statusReconciler[*corev1.Pod]
	deployments *statusReconciler[*appsv1.Deployment]
	services    *statusReconciler[*corev1.Service]
}

var _ backend.Adapter = (*Adapter)(nil)

func newAdapter(
	c client.Client,
	clientset kubernetes.Interface,
	sink *backend.Sink,
	o *adapterOptions,
	selector labels.Selector,
) *Adapter {
	logger := o.logger
	return &Adapter{
		client:      c,
		clientset:   clientset,
		sink:        sink,
		namespace:   o.namespace,
		selector:    selector,
		devPort:     o.devModePort,
		template:    o.podTemplate,
		logger:      logger,
		pods:        newPodReconciler(c, sink, logger),
		deployments: newDeploymentReconciler(c, sink, logger),
		services:    newServiceReconciler(c, sink, logger),
	}
}

// Kind returns the backend type
func (*Adapter) Kind() backend.Kind {
	return backend.KindKubernetes
}

// Start runs the manager until ctx is cancelled. Once the informer caches are
// synced every watched object is stored and the system-ready event is published.
func (a *Adapter) Start(ctx context.Context) error {
	if a.mgr == nil {
		return errors.New("cluster adapter has no manager")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.mgr.Start(ctx)
	}()

	if !a.mgr.GetCache().WaitForCacheSync(ctx) {
		if err := <-errCh; err != nil {
			return fmt.Errorf("manager stopped before cache sync: %w", err)
		}
		return ctx.Err()
	}

	if err := a.syncAll(ctx); err != nil {
		a.logger.Warnw("Initial cluster listing incomplete", "error", err)
	}
	a.sink.Ready(ctx)
	a.logger.Infow("Cluster adapter ready", "namespace", a.namespace, "selector", a.selector.String())

	if err := <-errCh; err != nil {
		return fmt.Errorf("manager stopped: %w", err)
	}
	return nil
}

// syncAll stores every watched object once
func (a *Adapter) syncAll(ctx context.Context) error {
	opts := a.listOptions()

	var pods corev1.PodList
	if err := a.client.List(ctx, &pods, opts...); err != nil {
		return fmt.Errorf("failed to list pods: %w", err)
	}
	for i := range pods.Items {
		applyPod(ctx, a.sink, &pods.Items[i], a.logger)
	}

	var deployments appsv1.DeploymentList
	if err := a.client.List(ctx, &deployments, opts...); err != nil {
		return fmt.Errorf("failed to list deployments: %w", err)
	}
	for i := range deployments.Items {
		a.sink.PutDeployment(ctx, normalizeDeployment(&deployments.Items[i], a.sink.Environment()))
	}

	var services corev1.ServiceList
	if err := a.client.List(ctx, &services, opts...); err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}
	for i := range services.Items {
		a.sink.PutService(ctx, normalizeService(&services.Items[i], a.sink.Environment()))
	}

	return nil
}

func (a *Adapter) listOptions() []client.ListOption {
	return []client.ListOption{
		client.InNamespace(a.namespace),
		client.MatchingLabelsSelector{Selector: a.selector},
	}
}

// CollectStats refreshes the request/limit summary of every stored pod
func (a *Adapter) CollectStats(ctx context.Context) error {
	var pods corev1.PodList
	if err := a.client.List(ctx, &pods, a.listOptions()...); err != nil {
		return fmt.Errorf("failed to list pods: %w", err)
	}

	for i := range pods.Items {
		pod := &pods.Items[i]
		key, _, ok := a.sink.Store().Containers.FindByName(a.sink.Environment(), pod.Name)
		if !ok {
			continue
		}
		memory, cpu := resourceInfo(pod)
		a.sink.UpdateUsage(ctx, key, memory, cpu)
	}
	return nil
}

// CreateDevMode creates the dev-mode pod and the service addressing it.
// Existing objects are left untouched.
func (a *Adapter) CreateDevMode(ctx context.Context, spec backend.DevModeSpec) error {
	if spec.Port == 0 {
		spec.Port = a.devPort
	}
	if spec.Kind == "" {
		spec.Kind = status.KindDevMode
	}

	pod := a.devModePod(spec)
	if err := a.client.Create(ctx, pod); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create dev-mode pod %s: %w", spec.Name, err)
	}

	svc := a.devModeService(spec)
	if err := a.client.Create(ctx, svc); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create dev-mode service %s: %w", spec.Name, err)
	}

	a.logger.Infow("Dev-mode pod requested", "project", spec.ProjectID, "name", spec.Name)
	return nil
}

func (a *Adapter) devModePod(spec backend.DevModeSpec) *corev1.Pod {
	podLabels := backend.Labels(spec.ProjectID, spec.Kind)

	var podSpec corev1.PodSpec
	if a.template != nil {
		podSpec = *a.template.Spec.DeepCopy()
		for k, v := range a.template.Labels {
			if _, reserved := podLabels[k]; !reserved {
				podLabels[k] = v
			}
		}
	}

	container := corev1.Container{Name: devModeContainerName}
	if len(podSpec.Containers) > 0 {
		container = podSpec.Containers[0]
	}
	container.Image = spec.Image
	container.Ports = []corev1.ContainerPort{{
		Name:          "http",
		ContainerPort: int32(spec.Port),
		Protocol:      corev1.ProtocolTCP,
	}}
	container.Env = append(container.Env, envVars(spec.Env)...)

	if len(podSpec.Containers) > 0 {
		podSpec.Containers[0] = container
	} else {
		podSpec.Containers = []corev1.Container{container}
	}
	if podSpec.RestartPolicy == "" {
		podSpec.RestartPolicy = corev1.RestartPolicyAlways
	}
	if podSpec.TerminationGracePeriodSeconds == nil {
		podSpec.TerminationGracePeriodSeconds = ptr.To[int64](10)
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: a.namespace,
			Labels:    podLabels,
		},
		Spec: podSpec,
	}
}

func (a *Adapter) devModeService(spec backend.DevModeSpec) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: a.namespace,
			Labels:    backend.Labels(spec.ProjectID, spec.Kind),
		},
		Spec: corev1.ServiceSpec{
			Type: corev1.ServiceTypeClusterIP,
			Selector: map[string]string{
				backend.LabelProjectID: spec.ProjectID,
				backend.LabelKind:      string(spec.Kind),
			},
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       int32(spec.Port),
				TargetPort: intstr.FromInt32(int32(spec.Port)),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
}

func envVars(env map[string]string) []corev1.EnvVar {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]corev1.EnvVar, 0, len(names))
	for _, name := range names {
		out = append(out, corev1.EnvVar{Name: name, Value: env[name]})
	}
	return out
}

// Teardown deletes the workload pod and its service. Pods cannot be stopped
// without being deleted, so Remove makes no difference here.
func (a *Adapter) Teardown(ctx context.Context, req backend.TeardownRequest) error {
	meta := metav1.ObjectMeta{Name: req.Name, Namespace: a.namespace}

	if err := a.client.Delete(ctx, &corev1.Pod{ObjectMeta: meta}); client.IgnoreNotFound(err) != nil {
		return fmt.Errorf("failed to delete pod %s: %w", req.Name, err)
	}
	if err := a.client.Delete(ctx, &corev1.Service{ObjectMeta: meta}); client.IgnoreNotFound(err) != nil {
		return fmt.Errorf("failed to delete service %s: %w", req.Name, err)
	}
	return nil
}

// StreamLogs follows the log of the pod's main container
func (a *Adapter) StreamLogs(ctx context.Context, name string, sink func(string)) error {
	req := a.clientset.CoreV1().Pods(a.namespace).GetLogs(name, &corev1.PodLogOptions{
		Follow:    true,
		TailLines: ptr.To[int64](logTailLines),
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("%w: pod %s", backend.ErrNotFound, name)
		}
		return fmt.Errorf("failed to open log stream for %s: %w", name, err)
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		sink(scanner.Text())
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("log stream for %s failed: %w", name, err)
	}
	return nil
}

// BaseURL returns the in-cluster DNS address of the container's service
func (a *Adapter) BaseURL(cs status.ContainerStatus) (string, error) {
	if cs.Name == "" {
		return "", backend.ErrNoAddress
	}
	port := cs.ExposedPort
	if port == 0 {
		port = a.devPort
	}
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", cs.Name, a.namespace, port), nil
}
