// Package devmode drives the hot-reload workflow of projects under active edit.
//
// The controller consumes lifecycle commands from the event bus, asks the
// active backend to create or tear down dev-mode containers, pushes project
// files into running containers and triggers their recompilation. Every call
// into a container goes through a per-address circuit breaker.
package devmode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/breaker"
	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/httpclient"
	"github.com/integrio/status-engine/internal/otel"
	"github.com/integrio/status-engine/internal/projects"
	"github.com/integrio/status-engine/internal/status"
)

// FileSource provides the files pushed into a container on reload
//
//go:generate mockgen -destination=mocks/mock_file_source.go -package=mocks -source=controller.go FileSource
type FileSource interface {
	ProjectFiles(ctx context.Context, projectID string) ([]projects.File, error)
}

// Remote call outcomes recorded in metrics
const (
	outcomeSuccess      = "success"
	outcomeFailure      = "failure"
	outcomeShortCircuit = "short_circuit"
)

// Controller executes dev-mode commands
type Controller struct {
	adapter backend.Adapter
	sink    *backend.Sink
	bus     eventbus.Publisher
	opts    *controllerOptions
	logger  *zap.SugaredLogger

	// streamCtx parents log streams so they end with the controller
	streamCtx    context.Context
	streamCancel context.CancelFunc

	mu      sync.Mutex
	streams map[status.GroupedKey]*logStream
	wg      sync.WaitGroup
}

type logStream struct {
	cancel context.CancelFunc
}

// New creates a controller for the active backend
func New(adapter backend.Adapter, sink *backend.Sink, bus eventbus.Publisher, opts ...Option) (*Controller, error) {
	if adapter == nil || sink == nil || bus == nil {
		return nil, errors.New("adapter, sink and publisher are required")
	}

	o := &controllerOptions{
		requestTimeout: defaultRequestTimeout,
		introspection:  DefaultIntrospection,
		logger:         zap.NewNop().Sugar(),
		now:            time.Now,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.client == nil {
		o.client = httpclient.NewDefaultClient(0)
	}
	if o.breakers == nil {
		o.breakers = breaker.NewRegistry(breaker.DefaultSettings(), o.logger)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	return &Controller{
		adapter:      adapter,
		sink:         sink,
		bus:          bus,
		opts:         o,
		logger:       o.logger,
		streamCtx:    streamCtx,
		streamCancel: cancel,
		streams:      make(map[status.GroupedKey]*logStream),
	}, nil
}

// Subscribe registers the controller for dev-mode commands. Commands for the
// same container are handled one at a time in publish order. The circuit of a
// container is dropped once the container is deleted.
func (c *Controller) Subscribe(bus *eventbus.Bus) func() {
	unsubCommands := bus.Subscribe(eventbus.TopicDevModeCommand, "devmode",
		func(ctx context.Context, ev eventbus.Event) error {
			cmd, ok := ev.Payload.(status.DevModeCommand)
			if !ok {
				return fmt.Errorf("unexpected payload %T", ev.Payload)
			}
			return c.HandleCommand(ctx, cmd)
		})
	unsubDeleted := bus.Subscribe(eventbus.TopicContainerDeleted, "devmode-breakers",
		func(_ context.Context, ev eventbus.Event) error {
			key, ok := ev.Payload.(status.GroupedKey)
			if !ok {
				return fmt.Errorf("unexpected payload %T", ev.Payload)
			}
			c.opts.breakers.Remove(key.String())
			return nil
		})
	return func() {
		unsubCommands()
		unsubDeleted()
	}
}

// HandleCommand executes one command. Commands that refer to containers that
// no longer exist are no-ops, so replaying a command is safe.
func (c *Controller) HandleCommand(ctx context.Context, cmd status.DevModeCommand) error {
	attrs := append(otel.KeyAttributes(cmd.Key()), otel.AttrCommand.String(string(cmd.Command)))
	ctx, span := otel.StartSpan(ctx, c.opts.tracer, "devmode."+string(cmd.Command), trace.WithAttributes(attrs...))
	defer span.End()

	c.logger.Debugw("Handling dev-mode command", "command", cmd.Command, "key", cmd.Key().String(), "id", cmd.ID)

	switch cmd.Command {
	case status.CommandRun:
		return c.run(ctx, cmd)
	case status.CommandStop, status.CommandDelete:
		return c.teardown(ctx, cmd)
	case status.CommandReload:
		c.Reload(ctx, cmd)
		return nil
	case status.CommandLog:
		return c.toggleLogs(cmd)
	default:
		err := fmt.Errorf("unknown dev-mode command %q", cmd.Command)
		otel.RecordError(span, err)
		return err
	}
}

func (c *Controller) run(ctx context.Context, cmd status.DevModeCommand) error {
	key := cmd.Key()
	if cs, ok := c.sink.Store().Containers.Get(key); ok && cs.Phase == status.PhaseRunning {
		c.publishResult(ctx, cmd, true, "already running")
		return nil
	}

	c.sink.MarkInTransit(ctx, status.Minimal(key.Name, key.ProjectID, key.Environment, status.KindDevMode))

	spec := backend.DevModeSpec{
		ProjectID:   key.ProjectID,
		Environment: key.Environment,
		Name:        key.Name,
		Image:       c.opts.image,
		Port:        c.opts.port,
		Kind:        status.KindDevMode,
		Env: map[string]string{
			"PROJECT_ID":  key.ProjectID,
			"ENVIRONMENT": key.Environment,
		},
	}
	if err := c.adapter.CreateDevMode(ctx, spec); err != nil {
		c.sink.ClearInTransit(ctx, key)
		c.logger.Warnw("Dev-mode container not created", "key", key.String(), "error", err)
		c.publishResult(ctx, cmd, false, err.Error())
		return nil
	}

	c.publishResult(ctx, cmd, true, "")
	return nil
}

func (c *Controller) teardown(ctx context.Context, cmd status.DevModeCommand) error {
	key := cmd.Key()
	c.stopLogs(key)

	if _, ok := c.sink.Store().Containers.Get(key); !ok {
		c.publishResult(ctx, cmd, true, "not present")
		return nil
	}

	c.sink.MarkInTransit(ctx, status.Minimal(key.Name, key.ProjectID, key.Environment, status.KindDevMode))

	req := backend.TeardownRequest{
		ProjectID:   key.ProjectID,
		Environment: key.Environment,
		Name:        key.Name,
		Remove:      cmd.Command == status.CommandDelete,
	}
	if err := c.adapter.Teardown(ctx, req); err != nil {
		c.sink.ClearInTransit(ctx, key)
		c.logger.Warnw("Dev-mode teardown failed", "key", key.String(), "error", err)
		c.publishResult(ctx, cmd, false, err.Error())
		return nil
	}

	c.sink.DeleteContainer(ctx, key)
	c.publishResult(ctx, cmd, true, "")
	return nil
}

func (c *Controller) publishResult(ctx context.Context, cmd status.DevModeCommand, success bool, message string) {
	key := cmd.Key()
	result := status.DevModeResult{
		Command:       cmd.Command,
		ProjectID:     key.ProjectID,
		Environment:   key.Environment,
		ContainerName: key.Name,
		Success:       success,
		Message:       message,
		FinishedAt:    c.opts.now(),
	}
	if err := c.bus.Publish(ctx, eventbus.TopicDevModeStatus, key.String(), result); err != nil {
		c.logger.Warnw("Failed to publish dev-mode result", "key", key.String(), "error", err)
	}
}

// Close stops every log stream and waits for them to end
func (c *Controller) Close() {
	c.streamCancel()
	c.wg.Wait()
}
