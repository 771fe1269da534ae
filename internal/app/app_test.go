package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/backend/mocks"
	"github.com/integrio/status-engine/internal/config"
	"github.com/integrio/status-engine/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`environment: dev
backend:
  type: docker
devMode:
  image: registry.local/integration-runner:1.4
scheduler:
  statsInterval: 1h
  camelInterval: 1h`))
	require.NoError(t, err)
	return cfg
}

// fakeBackend hands out a mock adapter and keeps the sink it was built with
type fakeBackend struct {
	mu      sync.Mutex
	adapter *mocks.MockAdapter
	sink    *backend.Sink
}

func (f *fakeBackend) factory(sink *backend.Sink) (backend.Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
	return f.adapter, nil
}

func (f *fakeBackend) getSink() *backend.Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

func newTestApp(t *testing.T, fb *fakeBackend) *EngineApp {
	t.Helper()
	app, err := NewEngineApp(context.Background(),
		WithConfig(testConfig(t)),
		WithAddress("127.0.0.1:0"),
		WithAdapterFactory(fb.factory),
		WithShutdownTimeout(5*time.Second),
	)
	require.NoError(t, err)
	return app
}

func TestEngineApp_StartStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	fb := &fakeBackend{adapter: mocks.NewMockAdapter(ctrl)}
	fb.adapter.EXPECT().Kind().Return(backend.KindDocker).AnyTimes()
	fb.adapter.EXPECT().Start(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		fb.getSink().Ready(ctx)
		<-ctx.Done()
		return ctx.Err()
	})

	app := newTestApp(t, fb)
	svc := app.Components().Service
	assert.ErrorIs(t, svc.CheckReadiness(context.Background()), service.ErrNotReady)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	require.Eventually(t, func() bool {
		return app.Components().Ready.Fired()
	}, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, svc.CheckReadiness(context.Background()))

	require.NoError(t, app.Stop(5*time.Second))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	// a second Stop is a no-op
	assert.NoError(t, app.Stop(time.Second))
}

func TestEngineApp_AdapterFailureStopsStart(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	fb := &fakeBackend{adapter: mocks.NewMockAdapter(ctrl)}
	fb.adapter.EXPECT().Kind().Return(backend.KindDocker).AnyTimes()
	fb.adapter.EXPECT().Start(gomock.Any()).Return(errors.New("daemon unreachable"))

	app := newTestApp(t, fb)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "docker adapter failed")
		assert.Contains(t, err.Error(), "daemon unreachable")
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after the adapter failed")
	}
	assert.NoError(t, app.Stop(5*time.Second))
}

func TestNewEngineApp_AdapterError(t *testing.T) {
	t.Parallel()

	app, err := NewEngineApp(context.Background(),
		WithConfig(testConfig(t)),
		WithAdapterFactory(func(*backend.Sink) (backend.Adapter, error) {
			return nil, errors.New("no daemon")
		}),
	)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "failed to create docker adapter")
}

func TestNewEngineApp_WiresScheduledTasks(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	fb := &fakeBackend{adapter: mocks.NewMockAdapter(ctrl)}
	fb.adapter.EXPECT().Kind().Return(backend.KindDocker).AnyTimes()

	app := newTestApp(t, fb)
	c := app.Components()

	assert.NotNil(t, c.Store)
	assert.NotNil(t, c.Bus)
	assert.NotNil(t, c.Controller)
	assert.NotNil(t, c.Hub)
	assert.NotNil(t, c.Scheduler)
	assert.Len(t, c.unsubscribe, 3)
	assert.Equal(t, "127.0.0.1:0", app.GetHTTPServer().Addr)
	assert.Equal(t, "dev", app.GetConfig().Environment)

	require.NoError(t, app.Stop(time.Second))
	assert.Empty(t, c.unsubscribe)
}
