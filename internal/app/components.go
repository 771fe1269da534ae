package app

import (
	"github.com/integrio/status-engine/internal/backend"
	"github.com/integrio/status-engine/internal/devmode"
	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/push"
	"github.com/integrio/status-engine/internal/scheduler"
	"github.com/integrio/status-engine/internal/service"
	"github.com/integrio/status-engine/internal/store"
	"github.com/integrio/status-engine/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Store holds the normalized view of the active backend
	Store *store.Store

	// Bus carries status events and dev-mode commands
	Bus *eventbus.Bus

	// Ready fires once the first full backend view is stored
	Ready *eventbus.Signal

	// Adapter observes the active backend
	Adapter backend.Adapter

	// Controller executes dev-mode commands
	Controller *devmode.Controller

	// Scheduler runs the periodic tasks
	Scheduler *scheduler.Scheduler

	// Hub relays status events to websocket subscribers
	Hub *push.Hub

	// Service is the command and query surface
	Service service.Service

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry

	// unsubscribe detaches every bus subscriber registered at build time
	unsubscribe []func()
}
