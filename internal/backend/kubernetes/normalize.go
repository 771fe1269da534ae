package kubernetes

import (
	"errors"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/status"
)

var errNoContainers = errors.New("pod has no containers")

// normalizePod converts a pod into a ContainerStatus
func normalizePod(pod *corev1.Pod, env string) (status.ContainerStatus, error) {
	labels := pod.GetLabels()
	cs := status.ContainerStatus{
		Name:        pod.Name,
		ProjectID:   backend.ProjectID(labels, pod.Name),
		Environment: env,
		ContainerID: string(pod.UID),
		Kind:        backend.ResourceKind(labels, status.KindPod),
		State:       string(pod.Status.Phase),
		Phase:       podPhase(pod),
		Ready:       podReady(pod),
		CreatedAt:   pod.CreationTimestamp.Time,
	}

	if len(pod.Spec.Containers) == 0 {
		return cs, errNoContainers
	}

	first := pod.Spec.Containers[0]
	cs.Image = first.Image
	if len(first.Ports) > 0 {
		cs.ExposedPort = int(first.Ports[0].ContainerPort)
	}
	cs.MemoryInfo, cs.CPUInfo = resourceInfo(pod)

	return cs, nil
}

func podPhase(pod *corev1.Pod) status.Phase {
	if pod.DeletionTimestamp != nil {
		return status.PhaseTerminating
	}
	switch pod.Status.Phase {
	case corev1.PodRunning:
		return status.PhaseRunning
	case corev1.PodPending:
		return status.PhasePending
	default:
		return status.PhaseUnknown
	}
}

func podReady(pod *corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

// resourceInfo sums requests and limits over all containers and renders them
// as "requests / limits"
func resourceInfo(pod *corev1.Pod) (memory, cpu string) {
	var memReq, memLim, cpuReq, cpuLim resource.Quantity
	for _, c := range pod.Spec.Containers {
		addQuantity(&memReq, c.Resources.Requests, corev1.ResourceMemory)
		addQuantity(&memLim, c.Resources.Limits, corev1.ResourceMemory)
		addQuantity(&cpuReq, c.Resources.Requests, corev1.ResourceCPU)
		addQuantity(&cpuLim, c.Resources.Limits, corev1.ResourceCPU)
	}
	return formatPair(memReq, memLim), formatPair(cpuReq, cpuLim)
}

func addQuantity(total *resource.Quantity, list corev1.ResourceList, name corev1.ResourceName) {
	if q, ok := list[name]; ok {
		total.Add(q)
	}
}

func formatPair(request, limit resource.Quantity) string {
	if request.IsZero() && limit.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s / %s", quantityString(request), quantityString(limit))
}

func quantityString(q resource.Quantity) string {
	if q.IsZero() {
		return "-"
	}
	return q.String()
}

func normalizeDeployment(d *appsv1.Deployment, env string) status.DeploymentStatus {
	replicas := int32(1)
	if d.Spec.Replicas != nil {
		replicas = *d.Spec.Replicas
	}
	return status.DeploymentStatus{
		Name:                d.Name,
		ProjectID:           backend.ProjectID(d.GetLabels(), d.Name),
		Environment:         env,
		Namespace:           d.Namespace,
		Replicas:            replicas,
		ReadyReplicas:       d.Status.ReadyReplicas,
		UnavailableReplicas: d.Status.UnavailableReplicas,
	}
}

func normalizeService(svc *corev1.Service, env string) status.ServiceStatus {
	out := status.ServiceStatus{
		Name:        svc.Name,
		ProjectID:   backend.ProjectID(svc.GetLabels(), svc.Name),
		Environment: env,
		Namespace:   svc.Namespace,
		ClusterIP:   svc.Spec.ClusterIP,
		ServiceType: string(svc.Spec.Type),
	}
	if len(svc.Spec.Ports) > 0 {
		out.Port = svc.Spec.Ports[0].Port
		out.TargetPort = int32(svc.Spec.Ports[0].TargetPort.IntValue())
	}
	return out
}
