package kubernetes

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/status"
)

// statusReconciler mirrors one resource kind into the store
type statusReconciler[T client.Object] struct {
	name      string
	client    client.Client
	newObject func() T
	apply     func(ctx context.Context, obj T)
	remove    func(ctx context.Context, name string) bool
	logger    *zap.SugaredLogger
}

// Reconcile stores the current state of the object or removes it when it is gone.
// Removal only publishes when a record existed, so a relist after a reconnect does
// not emit duplicate deletions.
func (r *statusReconciler[T]) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	obj := r.newObject()
	if err := r.client.Get(ctx, req.NamespacedName, obj); err != nil {
		if apierrors.IsNotFound(err) {
			if r.remove(ctx, req.Name) {
				r.logger.Debugw("Removed status", "name", req.Name)
			}
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, fmt.Errorf("failed to get %s %s: %w", r.name, req.NamespacedName, err)
	}

	r.apply(ctx, obj)
	return ctrl.Result{}, nil
}

// SetupWithManager registers the reconciler with the manager
func (r *statusReconciler[T]) SetupWithManager(mgr ctrl.Manager) error {
	r.client = mgr.GetClient()
	return ctrl.NewControllerManagedBy(mgr).
		For(r.newObject()).
		Named(r.name + "-status").
		Complete(r)
}

func newPodReconciler(c client.Client, sink *backend.Sink, logger *zap.SugaredLogger) *statusReconciler[*corev1.Pod] {
	return &statusReconciler[*corev1.Pod]{
		name:      "pod",
		client:    c,
		newObject: func() *corev1.Pod { return &corev1.Pod{} },
		apply: func(ctx context.Context, pod *corev1.Pod) {
			applyPod(ctx, sink, pod, logger)
		},
		remove: sink.DeleteContainerByName,
		logger: logger.With("kind", "Pod"),
	}
}

func newDeploymentReconciler(
	c client.Client, sink *backend.Sink, logger *zap.SugaredLogger,
) *statusReconciler[*appsv1.Deployment] {
	return &statusReconciler[*appsv1.Deployment]{
		name:      "deployment",
		client:    c,
		newObject: func() *appsv1.Deployment { return &appsv1.Deployment{} },
		apply: func(ctx context.Context, d *appsv1.Deployment) {
			sink.PutDeployment(ctx, normalizeDeployment(d, sink.Environment()))
		},
		remove: sink.DeleteDeploymentByName,
		logger: logger.With("kind", "Deployment"),
	}
}

func newServiceReconciler(c client.Client, sink *backend.Sink, logger *zap.SugaredLogger) *statusReconciler[*corev1.Service] {
	return &statusReconciler[*corev1.Service]{
		name:      "service",
		client:    c,
		newObject: func() *corev1.Service { return &corev1.Service{} },
		apply: func(ctx context.Context, svc *corev1.Service) {
			sink.PutService(ctx, normalizeService(svc, sink.Environment()))
		},
		remove: sink.DeleteServiceByName,
		logger: logger.With("kind", "Service"),
	}
}

// applyPod stores a pod, degrading to an identity-only record when it cannot be normalized
func applyPod(ctx context.Context, sink *backend.Sink, pod *corev1.Pod, logger *zap.SugaredLogger) {
	cs, err := normalizePod(pod, sink.Environment())
	if err != nil {
		logger.Warnw("Failed to normalize pod, storing minimal status",
			"namespace", pod.Namespace,
			"name", pod.Name,
			"error", err,
		)
		cs = status.Minimal(cs.Name, cs.ProjectID, cs.Environment, cs.Kind)
		cs.ContainerID = string(pod.UID)
	}
	sink.PutContainer(ctx, cs)
}
