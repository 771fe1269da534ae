package docker

import (
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/status"
)

type health string

const (
	healthNone      health = ""
	healthStarting  health = "starting"
	healthHealthy   health = "healthy"
	healthUnhealthy health = "unhealthy"
)

// parseHealth extracts the health suffix of a list status such as
// "Up 3 minutes (health: starting)"
func parseHealth(statusText string) health {
	switch {
	case strings.Contains(statusText, "(health: starting)"):
		return healthStarting
	case strings.Contains(statusText, "(unhealthy)"):
		return healthUnhealthy
	case strings.Contains(statusText, "(healthy)"):
		return healthHealthy
	default:
		return healthNone
	}
}

func statePhase(state string) status.Phase {
	switch state {
	case "running":
		return status.PhaseRunning
	case "created", "restarting":
		return status.PhasePending
	case "removing":
		return status.PhaseTerminating
	default:
		return status.PhaseUnknown
	}
}

// ready means running and not failing a health check
func ready(state string, h health) bool {
	return state == "running" && (h == healthNone || h == healthHealthy)
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func normalizeSummary(c container.Summary, env string, devPort int) status.ContainerStatus {
	name := containerName(c.Names)
	state := string(c.State)
	h := parseHealth(c.Status)

	cs := status.ContainerStatus{
		Name:        name,
		ProjectID:   backend.ProjectID(c.Labels, name),
		Environment: env,
		ContainerID: c.ID,
		Image:       c.Image,
		Kind:        backend.ResourceKind(c.Labels, status.KindContainer),
		State:       state,
		Phase:       statePhase(state),
		Ready:       ready(state, h),
		CreatedAt:   time.Unix(c.Created, 0).UTC(),
	}
	bindings := make([]portBinding, 0, len(c.Ports))
	for _, p := range c.Ports {
		bindings = append(bindings, portBinding{private: int(p.PrivatePort), proto: p.Type, host: int(p.PublicPort)})
	}
	cs.ExposedPort = hostPort(bindings, devPort)
	return cs
}

// normalizeInspect builds a status from an inspect response. The second result
// is false when the response lacks the fields needed for a full record.
func normalizeInspect(info container.InspectResponse, env string, devPort int) (status.ContainerStatus, bool) {
	if info.ContainerJSONBase == nil || info.Config == nil || info.State == nil {
		return status.ContainerStatus{}, false
	}

	name := strings.TrimPrefix(info.Name, "/")
	state := string(info.State.Status)
	h := healthNone
	if info.State.Health != nil {
		h = health(info.State.Health.Status)
	}

	cs := status.ContainerStatus{
		Name:        name,
		ProjectID:   backend.ProjectID(info.Config.Labels, name),
		Environment: env,
		ContainerID: info.ID,
		Image:       info.Config.Image,
		Kind:        backend.ResourceKind(info.Config.Labels, status.KindContainer),
		State:       state,
		Phase:       statePhase(state),
		Ready:       ready(state, h),
	}
	if created, err := time.Parse(time.RFC3339Nano, info.Created); err == nil {
		cs.CreatedAt = created.UTC()
	}
	if info.NetworkSettings != nil {
		cs.ExposedPort = hostPort(inspectBindings(info.NetworkSettings.Ports), devPort)
	}
	return cs, true
}

type portBinding struct {
	private int
	proto   string
	host    int
}

func inspectBindings(ports nat.PortMap) []portBinding {
	var out []portBinding
	for port, bindings := range ports {
		for _, b := range bindings {
			host, err := strconv.Atoi(b.HostPort)
			if err != nil {
				continue
			}
			out = append(out, portBinding{private: port.Int(), proto: port.Proto(), host: host})
		}
	}
	return out
}

// hostPort picks the published port of a container: the binding of the
// dev-mode port when there is one, otherwise the lowest published port.
// List and inspect results go through it so both agree on the address.
func hostPort(bindings []portBinding, devPort int) int {
	best, dev := 0, 0
	for _, b := range bindings {
		if b.host == 0 {
			continue
		}
		if b.private == devPort && b.proto == "tcp" && (dev == 0 || b.host < dev) {
			dev = b.host
		}
		if best == 0 || b.host < best {
			best = b.host
		}
	}
	if dev != 0 {
		return dev
	}
	return best
}
