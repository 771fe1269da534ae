package docker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/status"
)

// watchedActions are the lifecycle events that trigger an incremental update
var watchedActions = []events.Action{
	events.ActionStart,
	events.ActionStop,
	events.ActionDie,
	events.ActionKill,
	events.ActionPause,
	events.ActionUnPause,
	events.ActionDestroy,
	events.ActionHealthStatus,
}

// Adapter is the container-runtime backend
type Adapter struct {
	client       Client
	sink         *backend.Sink
	pollInterval time.Duration
	network      string
	devPort      int
	bindAddress  string
	lockFile     string
	logger       *zap.SugaredLogger

	newBackOff func() backoff.BackOff
}

var _ backend.Adapter = (*Adapter)(nil)

// New creates the container-runtime adapter
func New(sink *backend.Sink, opts ...Option) (*Adapter, error) {
	if sink == nil {
		return nil, fmt.Errorf("status sink is required")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	c := o.client
	if c == nil {
		cli, err := NewClient(o.host)
		if err != nil {
			return nil, err
		}
		c = cli
	}

	return &Adapter{
		client:       c,
		sink:         sink,
		pollInterval: o.pollInterval,
		network:      o.network,
		devPort:      o.devModePort,
		bindAddress:  o.bindAddress,
		lockFile:     o.lockFile,
		logger:       o.logger,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}, nil
}

// Kind returns the backend type
func (*Adapter) Kind() backend.Kind {
	return backend.KindDocker
}

// Start runs the poll loop and the event stream until ctx is cancelled
func (a *Adapter) Start(ctx context.Context) error {
	if a.lockFile != "" {
		lock := flock.New(a.lockFile)
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", a.lockFile, err)
		}
		if !locked {
			return fmt.Errorf("another engine holds %s", a.lockFile)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				a.logger.Warnw("Failed to release lock", "path", a.lockFile, "error", err)
			}
		}()
	}
	defer func() {
		if err := a.client.Close(); err != nil {
			a.logger.Debugw("Failed to close docker client", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.pollLoop(ctx)
		return nil
	})
	g.Go(func() error {
		a.watchEvents(ctx)
		return nil
	})
	return g.Wait()
}

func (a *Adapter) pollLoop(ctx context.Context) {
	if err := a.Refresh(ctx); err != nil {
		a.logger.Warnw("Initial container enumeration failed", "error", err)
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warnw("Container enumeration failed", "error", err)
			}
		}
	}
}

// Refresh enumerates every managed container, stores it, and removes the
// stored containers the enumeration no longer reports. The first successful
// enumeration publishes the system-ready event.
func (a *Adapter) Refresh(ctx context.Context) error {
	before := a.sink.ContainerKeys()

	list, err := a.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", backend.ManagedSelector)),
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	seen := make(map[status.GroupedKey]struct{}, len(list))
	for _, c := range list {
		cs := normalizeSummary(c, a.sink.Environment(), a.devPort)
		if cs.Name == "" {
			continue
		}
		stored := a.sink.PutContainer(ctx, cs)
		seen[stored.Key()] = struct{}{}
	}

	for _, key := range before {
		if _, ok := seen[key]; ok {
			continue
		}
		// a lifecycle request in flight owns the record until the runtime reports it
		if cs, ok := a.sink.Store().Containers.Get(key); ok && cs.InTransit {
			continue
		}
		if a.sink.DeleteContainer(ctx, key) {
			a.logger.Debugw("Removed stale container", "key", key.String())
		}
	}

	a.sink.Ready(ctx)
	return nil
}

// watchEvents follows the event stream and reconnects with exponential backoff.
// Every reconnect is followed by a full enumeration to cover missed events.
func (a *Adapter) watchEvents(ctx context.Context) {
	bo := a.newBackOff()
	for {
		err := a.streamEvents(ctx, bo)
		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		a.logger.Warnw("Container event stream interrupted", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := a.Refresh(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warnw("Container enumeration after reconnect failed", "error", err)
		}
	}
}

func (a *Adapter) streamEvents(ctx context.Context, bo backoff.BackOff) error {
	args := filters.NewArgs(
		filters.Arg("type", string(events.ContainerEventType)),
		filters.Arg("label", backend.ManagedSelector),
	)
	for _, action := range watchedActions {
		args.Add("event", string(action))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs, errs := a.client.Events(streamCtx, events.ListOptions{Filters: args})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err == nil {
				err = io.EOF
			}
			return err
		case msg, ok := <-msgs:
			if !ok {
				return io.EOF
			}
			bo.Reset()
			a.handleEvent(ctx, msg)
		}
	}
}

func (a *Adapter) handleEvent(ctx context.Context, msg events.Message) {
	name := msg.Actor.Attributes["name"]
	logger := a.logger.With("container", name, "action", msg.Action)

	if msg.Action == events.ActionDestroy {
		a.sink.DeleteContainerByName(ctx, name)
		return
	}

	info, err := a.client.ContainerInspect(ctx, msg.Actor.ID)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			a.sink.DeleteContainerByName(ctx, name)
			return
		}
		logger.Warnw("Failed to inspect container", "error", err)
		return
	}

	cs, ok := normalizeInspect(info, a.sink.Environment(), a.devPort)
	if !ok {
		if name == "" {
			return
		}
		logger.Warnw("Incomplete inspect response, storing minimal status")
		attrs := msg.Actor.Attributes
		cs = status.Minimal(name, backend.ProjectID(attrs, name), a.sink.Environment(),
			backend.ResourceKind(attrs, status.KindContainer))
		cs.ContainerID = msg.Actor.ID
	}
	a.sink.PutContainer(ctx, cs)
}

// CollectStats samples memory and CPU of every running stored container
func (a *Adapter) CollectStats(ctx context.Context) error {
	var errs []error
	for _, key := range a.sink.ContainerKeys() {
		cs, ok := a.sink.Store().Containers.Get(key)
		if !ok || cs.Phase != status.PhaseRunning || cs.ContainerID == "" {
			continue
		}

		memory, cpu, err := a.sample(ctx, cs.ContainerID)
		if err != nil {
			if !cerrdefs.IsNotFound(err) {
				errs = append(errs, fmt.Errorf("%s: %w", cs.Name, err))
			}
			continue
		}
		a.sink.UpdateUsage(ctx, key, memory, cpu)
	}
	return errors.Join(errs...)
}

func (a *Adapter) sample(ctx context.Context, id string) (memory, cpu string, err error) {
	resp, err := a.client.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	stats, err := decodeStats(resp.Body)
	if err != nil {
		return "", "", err
	}
	return memoryInfo(stats), cpuInfo(stats), nil
}

// CreateDevMode starts the dev-mode container, creating it when missing. The
// container port is published on an ephemeral loopback port.
func (a *Adapter) CreateDevMode(ctx context.Context, spec backend.DevModeSpec) error {
	if spec.Port == 0 {
		spec.Port = a.devPort
	}
	if spec.Kind == "" {
		spec.Kind = status.KindDevMode
	}

	info, err := a.client.ContainerInspect(ctx, spec.Name)
	switch {
	case err == nil:
		if info.State != nil && info.State.Running {
			return nil
		}
	case cerrdefs.IsNotFound(err):
		if err := a.create(ctx, spec); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to inspect %s: %w", spec.Name, err)
	}

	if err := a.client.ContainerStart(ctx, spec.Name, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start %s: %w", spec.Name, err)
	}

	// record the published port now rather than waiting for the start event
	if info, err := a.client.ContainerInspect(ctx, spec.Name); err == nil {
		if cs, ok := normalizeInspect(info, a.sink.Environment(), a.devPort); ok {
			a.sink.PutContainer(ctx, cs)
		}
	}

	a.logger.Infow("Dev-mode container started", "project", spec.ProjectID, "name", spec.Name)
	return nil
}

func (a *Adapter) create(ctx context.Context, spec backend.DevModeSpec) error {
	port := nat.Port(strconv.Itoa(spec.Port) + "/tcp")

	config := &container.Config{
		Image:        spec.Image,
		Env:          envList(spec.Env),
		Labels:       backend.Labels(spec.ProjectID, spec.Kind),
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			// empty HostPort lets the runtime pick an ephemeral port
			port: []nat.PortBinding{{HostIP: a.bindAddress, HostPort: ""}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	var networkConfig *network.NetworkingConfig
	if a.network != "" {
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{a.network: {}},
		}
	}

	_, err := a.client.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, spec.Name)
	if err != nil && !cerrdefs.IsConflict(err) {
		return fmt.Errorf("failed to create %s: %w", spec.Name, err)
	}
	return nil
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Teardown stops the container and removes it when requested
func (a *Adapter) Teardown(ctx context.Context, req backend.TeardownRequest) error {
	timeout := defaultStopTimeout
	err := a.client.ContainerStop(ctx, req.Name, container.StopOptions{Timeout: &timeout})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("failed to stop %s: %w", req.Name, err)
	}
	if !req.Remove {
		return nil
	}

	err = a.client.ContainerRemove(ctx, req.Name, container.RemoveOptions{Force: true})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove %s: %w", req.Name, err)
	}
	return nil
}

// StreamLogs follows the container log. Stdout and stderr are merged.
func (a *Adapter) StreamLogs(ctx context.Context, name string, sink func(string)) error {
	rc, err := a.client.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       logTailLines,
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: container %s", backend.ErrNotFound, name)
		}
		return fmt.Errorf("failed to open log stream for %s: %w", name, err)
	}
	defer rc.Close()

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(err)
	}()
	defer pr.Close()

	scanner := bufio.NewScanner(pr)
	for scanner.Scan() {
		sink(scanner.Text())
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("log stream for %s failed: %w", name, err)
	}
	return nil
}

// BaseURL returns the loopback address of the container's published port
func (a *Adapter) BaseURL(cs status.ContainerStatus) (string, error) {
	if cs.ExposedPort == 0 {
		return "", backend.ErrNoAddress
	}
	return fmt.Sprintf("http://%s:%d", a.bindAddress, cs.ExposedPort), nil
}
