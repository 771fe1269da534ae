// Package status defines the backend-agnostic status model shared by the
// adapters, the store and the dev-mode controller.
package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// GroupedKey identifies a single logical resource within a project and environment.
// Name is the resource name (pod, container or service name).
type GroupedKey struct {
	ProjectID   string `json:"projectId"`
	Environment string `json:"environment"`
	Name        string `json:"name"`
}

// NewKey builds a GroupedKey
func NewKey(projectID, environment, name string) GroupedKey {
	return GroupedKey{ProjectID: projectID, Environment: environment, Name: name}
}

// String returns the key in "project:environment:name" form. It is used as the
// ordering key on the event bus.
func (k GroupedKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.ProjectID, k.Environment, k.Name)
}

// Phase is the normalized lifecycle phase of a workload
type Phase string

const (
	// PhasePending means the workload was created but is not running yet
	PhasePending Phase = "pending"

	// PhaseRunning means the workload is running
	PhaseRunning Phase = "running"

	// PhaseTerminating means the workload is being torn down
	PhaseTerminating Phase = "terminating"

	// PhaseUnknown covers every state the backends report that has no mapping
	PhaseUnknown Phase = "unknown"
)

// ResourceKind is the kind of workload a ContainerStatus describes
type ResourceKind string

const (
	// KindPod is a pod observed through the cluster backend
	KindPod ResourceKind = "pod"

	// KindContainer is a plain container observed through the container runtime
	KindContainer ResourceKind = "container"

	// KindDevMode is a hot-reload container for a project under active edit
	KindDevMode ResourceKind = "devmode"

	// KindDevService is a supporting service (database, broker) started for dev-mode
	KindDevService ResourceKind = "devservice"

	// KindProject is a packaged, deployed project instance
	KindProject ResourceKind = "project"
)

// ParseKind maps a label value to a ResourceKind, falling back to def.
func ParseKind(value string, def ResourceKind) ResourceKind {
	switch ResourceKind(value) {
	case KindPod, KindContainer, KindDevMode, KindDevService, KindProject:
		return ResourceKind(value)
	default:
		return def
	}
}

// Introspectable reports whether containers of this kind expose the runtime
// self-status endpoints.
func (k ResourceKind) Introspectable() bool {
	return k == KindDevMode || k == KindProject
}

// ContainerStatus is the normalized status of a pod or container.
// Values are treated as immutable once stored; callers copy before changing them.
type ContainerStatus struct {
	Name        string       `json:"name"`
	ProjectID   string       `json:"projectId"`
	Environment string       `json:"environment"`
	ContainerID string       `json:"containerId,omitempty"`
	Image       string       `json:"image,omitempty"`
	Ready       bool         `json:"ready"`
	Phase       Phase        `json:"phase"`
	State       string       `json:"state,omitempty"`
	Kind        ResourceKind `json:"kind"`
	ExposedPort int          `json:"exposedPort,omitempty"`
	CodeLoaded  bool         `json:"codeLoaded"`
	InTransit   bool         `json:"inTransit"`
	MemoryInfo  string       `json:"memoryInfo,omitempty"`
	CPUInfo     string       `json:"cpuInfo,omitempty"`
	Commands    []Command    `json:"commands,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Key returns the GroupedKey of the status
func (s ContainerStatus) Key() GroupedKey {
	return NewKey(s.ProjectID, s.Environment, s.Name)
}

// Minimal returns a record carrying only identity fields. Adapters fall back to it
// when a native object cannot be normalized.
func Minimal(name, projectID, environment string, kind ResourceKind) ContainerStatus {
	return ContainerStatus{
		Name:        name,
		ProjectID:   projectID,
		Environment: environment,
		Phase:       PhaseUnknown,
		Kind:        kind,
	}
}

// DeploymentStatus is the normalized status of a cluster deployment
type DeploymentStatus struct {
	Name                string `json:"name"`
	ProjectID           string `json:"projectId"`
	Environment         string `json:"environment"`
	Namespace           string `json:"namespace"`
	Replicas            int32  `json:"replicas"`
	ReadyReplicas       int32  `json:"readyReplicas"`
	UnavailableReplicas int32  `json:"unavailableReplicas"`
}

// Key returns the GroupedKey of the status
func (s DeploymentStatus) Key() GroupedKey {
	return NewKey(s.ProjectID, s.Environment, s.Name)
}

// ServiceStatus is the normalized status of a cluster service
type ServiceStatus struct {
	Name        string `json:"name"`
	ProjectID   string `json:"projectId"`
	Environment string `json:"environment"`
	Namespace   string `json:"namespace"`
	ClusterIP   string `json:"clusterIp,omitempty"`
	Port        int32  `json:"port,omitempty"`
	TargetPort  int32  `json:"targetPort,omitempty"`
	ServiceType string `json:"serviceType,omitempty"`
}

// Key returns the GroupedKey of the status
func (s ServiceStatus) Key() GroupedKey {
	return NewKey(s.ProjectID, s.Environment, s.Name)
}

// CamelStatus holds the runtime self-status snapshots collected from a running
// integration container, one raw JSON document per introspection name.
type CamelStatus struct {
	ProjectID     string                     `json:"projectId"`
	Environment   string                     `json:"environment"`
	ContainerName string                     `json:"containerName"`
	ContextState  string                     `json:"contextState,omitempty"`
	Snapshots     map[string]json.RawMessage `json:"snapshots"`
	CollectedAt   time.Time                  `json:"collectedAt"`
}

// Key returns the GroupedKey of the container the snapshot belongs to
func (s CamelStatus) Key() GroupedKey {
	return NewKey(s.ProjectID, s.Environment, s.ContainerName)
}

// Presence is a lightweight liveness record, refreshed while a user works on a project
type Presence struct {
	Key      GroupedKey `json:"key"`
	User     string     `json:"user"`
	LastSeen time.Time  `json:"lastSeen"`
}

// Session is an expiring session record
type Session struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session expired at the given instant
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
