// Package backend defines the contract shared by the cluster and container-runtime
// adapters, together with the label conventions and the store sink they write through.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/integrio/status-engine/internal/status"
)

// Kind selects the active adapter
type Kind string

const (
	// KindKubernetes observes pods, deployments and services in a cluster namespace
	KindKubernetes Kind = "kubernetes"

	// KindDocker observes containers on a single container runtime host
	KindDocker Kind = "docker"
)

// ParseKind validates a backend type name
func ParseKind(value string) (Kind, error) {
	switch k := Kind(strings.ToLower(value)); k {
	case KindKubernetes, KindDocker:
		return k, nil
	default:
		return "", fmt.Errorf("unsupported backend type %q (expected kubernetes or docker)", value)
	}
}

var (
	// ErrNotFound reports that the backend has no workload with the requested name
	ErrNotFound = errors.New("workload not found")

	// ErrNoAddress reports that a container cannot be reached yet
	ErrNoAddress = errors.New("container has no reachable address")
)

// DevModeSpec describes a dev-mode container to create
type DevModeSpec struct {
	ProjectID   string
	Environment string
	Name        string
	Image       string
	Port        int
	Kind        status.ResourceKind
	Env         map[string]string
}

// TeardownRequest identifies a workload to stop. Remove also deletes it.
type TeardownRequest struct {
	ProjectID   string
	Environment string
	Name        string
	Remove      bool
}

// Adapter observes one backend and executes dev-mode lifecycle requests on it
//
//go:generate mockgen -destination=mocks/mock_adapter.go -package=mocks -source=adapter.go Adapter
type Adapter interface {
	// Kind returns the backend type
	Kind() Kind

	// Start runs the observation loops until ctx is cancelled. It publishes
	// the system-ready event once the first full view of the backend is stored.
	Start(ctx context.Context) error

	// CollectStats refreshes resource usage on the stored container statuses
	CollectStats(ctx context.Context) error

	// CreateDevMode starts a dev-mode container. An existing one is reused.
	CreateDevMode(ctx context.Context, spec DevModeSpec) error

	// Teardown stops a workload. A missing workload is not an error.
	Teardown(ctx context.Context, req TeardownRequest) error

	// StreamLogs follows the log of a workload and hands each line to sink
	// until ctx is cancelled or the stream ends.
	StreamLogs(ctx context.Context, name string, sink func(line string)) error

	// BaseURL returns the address dev-mode calls are sent to
	BaseURL(cs status.ContainerStatus) (string, error)
}
