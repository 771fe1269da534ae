package backend

import (
	"github.com/integrio/status-engine/internal/status"
)

// Label keys set on managed workloads
const (
	LabelProjectID = "integrio.dev/project-id"
	LabelKind      = "integrio.dev/kind"
	LabelManagedBy = "app.kubernetes.io/managed-by"
	LabelApp       = "app"

	// ManagedByValue marks workloads the engine owns
	ManagedByValue = "status-engine"
)

// ManagedSelector is the label selector matching managed workloads
const ManagedSelector = LabelManagedBy + "=" + ManagedByValue

// ProjectID resolves the project of a workload from its labels. The project-id
// label wins over the app label; the workload name is the last resort.
func ProjectID(labels map[string]string, name string) string {
	if v := labels[LabelProjectID]; v != "" {
		return v
	}
	if v := labels[LabelApp]; v != "" {
		return v
	}
	return name
}

// ResourceKind resolves the kind of a workload from its labels
func ResourceKind(labels map[string]string, def status.ResourceKind) status.ResourceKind {
	return status.ParseKind(labels[LabelKind], def)
}

// Labels returns the labels set on a workload created by the engine
func Labels(projectID string, kind status.ResourceKind) map[string]string {
	return map[string]string{
		LabelProjectID: projectID,
		LabelKind:      string(kind),
		LabelManagedBy: ManagedByValue,
		LabelApp:       projectID,
	}
}
