package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/backend/docker/mocks"
	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/status"
	"github.com/integrio/status-engine/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []eventbus.Topic
}

func (p *recordingPublisher) Publish(_ context.Context, topic eventbus.Topic, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) count(topic eventbus.Topic) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type fixture struct {
	adapter *Adapter
	client  *mocks.MockClient
	sink    *backend.Sink
	store   *store.Store
	pub     *recordingPublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	st := store.New()
	pub := &recordingPublisher{}
	sink := backend.NewSink(st, pub, "dev", zap.NewNop().Sugar())

	a, err := New(sink, append([]Option{WithClient(client)}, opts...)...)
	require.NoError(t, err)
	a.newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}

	return &fixture{adapter: a, client: client, sink: sink, store: st, pub: pub}
}

func managedLabels(project string) map[string]string {
	return backend.Labels(project, status.KindDevMode)
}

func runningSummary(id, name, statusText string) container.Summary {
	return container.Summary{
		ID:      id,
		Names:   []string{"/" + name},
		Image:   "registry.local/" + name + ":dev",
		State:   "running",
		Status:  statusText,
		Labels:  managedLabels(name),
		Created: 1767225600,
		Ports:   []container.Port{{PrivatePort: 8080, PublicPort: 49153, Type: "tcp"}},
	}
}

func inspectRunning(id, name string, unhealthy bool) container.InspectResponse {
	info := container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:      id,
			Name:    "/" + name,
			Created: "2026-01-01T00:00:00.123456789Z",
			State:   &container.State{Status: "running", Running: true},
		},
		Config:          &container.Config{Image: "img", Labels: managedLabels(name)},
		NetworkSettings: &container.NetworkSettings{},
	}
	if unhealthy {
		info.State.Health = &container.Health{Status: "unhealthy"}
	}
	info.NetworkSettings.Ports = nat.PortMap{
		"8080/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "49160"}},
	}
	return info
}

func TestAdapter_RefreshStoresAndRemovesStale(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	stale := status.Minimal("old", "old", "dev", status.KindDevMode)
	f.sink.PutContainer(ctx, stale)
	pending := status.Minimal("starting", "starting", "dev", status.KindDevMode)
	f.sink.MarkInTransit(ctx, pending)

	f.client.EXPECT().ContainerList(gomock.Any(), gomock.Any()).
		Return([]container.Summary{runningSummary("c1", "orders", "Up 2 minutes (healthy)")}, nil).
		Times(2)

	require.NoError(t, f.adapter.Refresh(ctx))
	require.NoError(t, f.adapter.Refresh(ctx))

	got, ok := f.store.Containers.Get(status.NewKey("orders", "dev", "orders"))
	require.True(t, ok)
	assert.Equal(t, status.PhaseRunning, got.Phase)
	assert.True(t, got.Ready)
	assert.Equal(t, 49153, got.ExposedPort)
	assert.Equal(t, "c1", got.ContainerID)

	_, ok = f.store.Containers.Get(stale.Key())
	assert.False(t, ok, "stale container must be removed")
	_, ok = f.store.Containers.Get(pending.Key())
	assert.True(t, ok, "in-transit container must survive")

	assert.Equal(t, 1, f.pub.count(eventbus.TopicContainerDeleted))
	assert.Equal(t, 1, f.pub.count(eventbus.TopicSystemReady))
}

func TestAdapter_RefreshFailureKeepsStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	existing := f.sink.PutContainer(ctx, status.Minimal("orders", "orders", "dev", status.KindDevMode))

	f.client.EXPECT().ContainerList(gomock.Any(), gomock.Any()).Return(nil, errors.New("daemon unavailable"))

	assert.ErrorContains(t, f.adapter.Refresh(ctx), "daemon unavailable")
	_, ok := f.store.Containers.Get(existing.Key())
	assert.True(t, ok)
	assert.Zero(t, f.pub.count(eventbus.TopicSystemReady))
}

func TestAdapter_HandleEvent(t *testing.T) {
	t.Parallel()

	key := status.NewKey("orders", "dev", "orders")
	event := func(action events.Action) events.Message {
		return events.Message{
			Type:   events.ContainerEventType,
			Action: action,
			Actor:  events.Actor{ID: "c1", Attributes: map[string]string{"name": "orders", backend.LabelProjectID: "orders"}},
		}
	}

	tests := []struct {
		name      string
		action    events.Action
		setup     func(c *mocks.MockClient)
		wantStore bool
		wantReady bool
	}{
		{
			name:   "health transition is stored",
			action: events.Action("health_status: unhealthy"),
			setup: func(c *mocks.MockClient) {
				c.EXPECT().ContainerInspect(gomock.Any(), "c1").Return(inspectRunning("c1", "orders", true), nil)
			},
			wantStore: true,
			wantReady: false,
		},
		{
			name:   "start is stored",
			action: events.ActionStart,
			setup: func(c *mocks.MockClient) {
				c.EXPECT().ContainerInspect(gomock.Any(), "c1").Return(inspectRunning("c1", "orders", false), nil)
			},
			wantStore: true,
			wantReady: true,
		},
		{
			name:      "destroy removes the record",
			action:    events.ActionDestroy,
			setup:     func(*mocks.MockClient) {},
			wantStore: false,
		},
		{
			name:   "container gone before inspect",
			action: events.ActionDie,
			setup: func(c *mocks.MockClient) {
				c.EXPECT().ContainerInspect(gomock.Any(), "c1").Return(container.InspectResponse{}, cerrdefs.ErrNotFound)
			},
			wantStore: false,
		},
		{
			name:   "incomplete inspect falls back to a minimal record",
			action: events.ActionStop,
			setup: func(c *mocks.MockClient) {
				c.EXPECT().ContainerInspect(gomock.Any(), "c1").Return(container.InspectResponse{}, nil)
			},
			wantStore: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.sink.PutContainer(context.Background(), status.Minimal("orders", "orders", "dev", status.KindDevMode))
			tt.setup(f.client)

			f.adapter.handleEvent(context.Background(), event(tt.action))

			got, ok := f.store.Containers.Get(key)
			assert.Equal(t, tt.wantStore, ok)
			if ok {
				assert.Equal(t, tt.wantReady, got.Ready)
				assert.Equal(t, "c1", got.ContainerID)
			}
		})
	}
}

func TestAdapter_WatchEventsReconnects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstErrs := make(chan error, 1)
	firstErrs <- errors.New("connection reset")
	reconnected := make(chan struct{})

	gomock.InOrder(
		f.client.EXPECT().Events(gomock.Any(), gomock.Any()).
			Return((<-chan events.Message)(make(chan events.Message)), (<-chan error)(firstErrs)),
		f.client.EXPECT().Events(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, events.ListOptions) (<-chan events.Message, <-chan error) {
				close(reconnected)
				return make(chan events.Message), make(chan error)
			}),
	)
	f.client.EXPECT().ContainerList(gomock.Any(), gomock.Any()).Return(nil, nil).MinTimes(1)

	done := make(chan struct{})
	go func() {
		f.adapter.watchEvents(ctx)
		close(done)
	}()

	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("event stream was not reopened")
	}
	cancel()
	<-done
}

func TestAdapter_CollectStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	running := status.Minimal("orders", "orders", "dev", status.KindDevMode)
	running.Phase = status.PhaseRunning
	running.ContainerID = "c1"
	f.sink.PutContainer(ctx, running)
	f.sink.PutContainer(ctx, status.Minimal("stopped", "stopped", "dev", status.KindDevMode))

	body := `{
		"memory_stats": {"usage": 104857600, "limit": 1073741824, "stats": {"inactive_file": 4194304}},
		"cpu_stats": {"cpu_usage": {"total_usage": 400}, "system_cpu_usage": 2000, "online_cpus": 2},
		"precpu_stats": {"cpu_usage": {"total_usage": 200}, "system_cpu_usage": 1000}
	}`
	f.client.EXPECT().ContainerStatsOneShot(gomock.Any(), "c1").
		Return(container.StatsResponseReader{Body: io.NopCloser(strings.NewReader(body))}, nil)

	require.NoError(t, f.adapter.CollectStats(ctx))

	got, _ := f.store.Containers.Get(running.Key())
	assert.Equal(t, "96MiB / 1GiB", got.MemoryInfo)
	assert.Equal(t, "40.00%", got.CPUInfo)
}

func TestAdapter_CreateDevMode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithNetwork("integrations"))
	ctx := context.Background()
	spec := backend.DevModeSpec{
		ProjectID: "orders",
		Name:      "orders",
		Image:     "registry.local/devmode:1.0",
		Env:       map[string]string{"PROJECT_ID": "orders", "A": "1"},
	}

	gomock.InOrder(
		f.client.EXPECT().ContainerInspect(gomock.Any(), "orders").Return(container.InspectResponse{}, cerrdefs.ErrNotFound),
		f.client.EXPECT().ContainerCreate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), nil, "orders").
			DoAndReturn(func(_ context.Context, cfg *container.Config, host *container.HostConfig, netCfg any, _ any, _ string) (container.CreateResponse, error) {
				assert.Equal(t, []string{"A=1", "PROJECT_ID=orders"}, cfg.Env)
				assert.Equal(t, string(status.KindDevMode), cfg.Labels[backend.LabelKind])
				bindings := host.PortBindings["8080/tcp"]
				require.Len(t, bindings, 1)
				assert.Equal(t, "127.0.0.1", bindings[0].HostIP)
				assert.Empty(t, bindings[0].HostPort)
				assert.NotNil(t, netCfg)
				return container.CreateResponse{ID: "c1"}, nil
			}),
		f.client.EXPECT().ContainerStart(gomock.Any(), "orders", gomock.Any()).Return(nil),
		f.client.EXPECT().ContainerInspect(gomock.Any(), "orders").Return(inspectRunning("c1", "orders", false), nil),
	)

	require.NoError(t, f.adapter.CreateDevMode(ctx, spec))

	got, ok := f.store.Containers.Get(status.NewKey("orders", "dev", "orders"))
	require.True(t, ok)
	assert.Equal(t, 49160, got.ExposedPort)
}

func TestAdapter_CreateDevModeReusesRunningContainer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.client.EXPECT().ContainerInspect(gomock.Any(), "orders").Return(inspectRunning("c1", "orders", false), nil)

	require.NoError(t, f.adapter.CreateDevMode(context.Background(), backend.DevModeSpec{ProjectID: "orders", Name: "orders"}))
}

func TestAdapter_Teardown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		remove bool
		setup  func(c *mocks.MockClient)
	}{
		{
			name: "stop only",
			setup: func(c *mocks.MockClient) {
				c.EXPECT().ContainerStop(gomock.Any(), "orders", gomock.Any()).Return(nil)
			},
		},
		{
			name:   "missing container is not an error",
			remove: true,
			setup: func(c *mocks.MockClient) {
				c.EXPECT().ContainerStop(gomock.Any(), "orders", gomock.Any()).Return(cerrdefs.ErrNotFound)
				c.EXPECT().ContainerRemove(gomock.Any(), "orders", container.RemoveOptions{Force: true}).Return(cerrdefs.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			tt.setup(f.client)
			assert.NoError(t, f.adapter.Teardown(context.Background(), backend.TeardownRequest{Name: "orders", Remove: tt.remove}))
		})
	}
}

func TestAdapter_StreamLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte("line one\nline two\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte("oops\n"))
	require.NoError(t, err)

	f := newFixture(t)
	f.client.EXPECT().ContainerLogs(gomock.Any(), "orders", gomock.Any()).Return(io.NopCloser(&buf), nil)

	var lines []string
	require.NoError(t, f.adapter.StreamLogs(context.Background(), "orders", func(line string) {
		lines = append(lines, line)
	}))
	assert.Equal(t, []string{"line one", "line two", "oops"}, lines)

	f.client.EXPECT().ContainerLogs(gomock.Any(), "gone", gomock.Any()).Return(nil, cerrdefs.ErrNotFound)
	err = f.adapter.StreamLogs(context.Background(), "gone", func(string) {})
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestAdapter_BaseURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	url, err := f.adapter.BaseURL(status.ContainerStatus{ExposedPort: 49153})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:49153", url)

	_, err = f.adapter.BaseURL(status.ContainerStatus{})
	assert.ErrorIs(t, err, backend.ErrNoAddress)
}

func TestAdapter_StartRefusesHeldLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "engine.lock")
	held := flock.New(path)
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = held.Unlock() }()

	f := newFixture(t, WithLockFile(path))
	assert.ErrorContains(t, f.adapter.Start(context.Background()), "another engine holds")
}
