// Package service is the command and query surface of the status engine.
//
// It hides the store and the event bus from callers: commands are validated
// and queued on the bus, queries read the store of the configured environment.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/status"
	"github.com/integrio/status-engine/internal/store"
)

var (
	// ErrNotReady is returned while the initial backend state is not stored yet
	ErrNotReady = errors.New("status engine is not ready")
	// ErrInvalidCommand is returned when a command is missing required fields
	ErrInvalidCommand = errors.New("invalid dev-mode command")
	// ErrNotFound is returned when no record exists for a key
	ErrNotFound = errors.New("status not found")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

// Service defines the command and query operations of the engine
type Service interface {
	// CheckReadiness reports ErrNotReady until the first full backend view is stored
	CheckReadiness(ctx context.Context) error

	// EnqueueCommand validates a dev-mode command and queues it. It returns the command id.
	EnqueueCommand(ctx context.Context, cmd status.DevModeCommand) (string, error)

	// ContainerStatuses lists container statuses of the environment
	ContainerStatuses(ctx context.Context, opts ...Option[ListOptions]) ([]status.ContainerStatus, error)

	// DeploymentStatuses lists deployment statuses of the environment
	DeploymentStatuses(ctx context.Context, opts ...Option[ListOptions]) ([]status.DeploymentStatus, error)

	// ServiceStatuses lists service statuses of the environment
	ServiceStatuses(ctx context.Context, opts ...Option[ListOptions]) ([]status.ServiceStatus, error)

	// CamelStatus returns the last runtime self-status collected for a container
	CamelStatus(ctx context.Context, key status.GroupedKey) (status.CamelStatus, error)

	// TouchPresence records that a user is working on a project
	TouchPresence(ctx context.Context, key status.GroupedKey, user string) error

	// PutSession stores or replaces a session
	PutSession(ctx context.Context, session status.Session) error
}

// Option sets an option of a service operation
type Option[T ListOptions] func(*T) error

// ListOptions is the options for the list operations
type ListOptions struct {
	ProjectID string
}

// WithProjectID restricts a listing to one project
func WithProjectID(projectID string) Option[ListOptions] {
	return func(o *ListOptions) error {
		if projectID == "" {
			return fmt.Errorf("invalid project id: %q", projectID)
		}
		o.ProjectID = projectID
		return nil
	}
}

type defaultService struct {
	store  *store.Store
	bus    eventbus.Publisher
	ready  *eventbus.Signal
	env    string
	logger *zap.SugaredLogger
	now    func() time.Time
	newID  func() string
}

// ServiceOption configures the service
type ServiceOption func(*defaultService)

// WithClock overrides the clock used to stamp commands and presence records
func WithClock(now func() time.Time) ServiceOption {
	return func(s *defaultService) {
		s.now = now
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.SugaredLogger) ServiceOption {
	return func(s *defaultService) {
		s.logger = logger
	}
}

// New creates the service for one environment
func New(st *store.Store, bus eventbus.Publisher, ready *eventbus.Signal, env string, opts ...ServiceOption) Service {
	s := &defaultService{
		store:  st,
		bus:    bus,
		ready:  ready,
		env:    env,
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *defaultService) CheckReadiness(_ context.Context) error {
	if !s.ready.Fired() {
		return ErrNotReady
	}
	return nil
}

func (s *defaultService) EnqueueCommand(ctx context.Context, cmd status.DevModeCommand) (string, error) {
	if _, err := status.ParseCommand(string(cmd.Command)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if cmd.ProjectID == "" {
		return "", fmt.Errorf("%w: project id is required", ErrInvalidCommand)
	}
	if cmd.Environment == "" {
		cmd.Environment = s.env
	}
	if cs, ok := s.store.Containers.Get(cmd.Key()); ok && cmd.Command.Lifecycle() &&
		!slices.Contains(cs.Commands, cmd.Command) {
		return "", fmt.Errorf("%w: %s container %s does not accept %s",
			ErrInvalidCommand, cs.Kind, cs.Name, cmd.Command)
	}
	if cmd.ID == "" {
		cmd.ID = s.newID()
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = s.now()
	}

	if err := s.bus.Publish(ctx, eventbus.TopicDevModeCommand, cmd.Key().String(), cmd); err != nil {
		return "", fmt.Errorf("failed to queue command: %w", err)
	}
	s.logger.Debugw("Queued dev-mode command", "id", cmd.ID, "command", cmd.Command, "key", cmd.Key().String())
	return cmd.ID, nil
}

func (s *defaultService) ContainerStatuses(
	_ context.Context, opts ...Option[ListOptions],
) ([]status.ContainerStatus, error) {
	return list(s.store.Containers, s.env, opts)
}

func (s *defaultService) DeploymentStatuses(
	_ context.Context, opts ...Option[ListOptions],
) ([]status.DeploymentStatus, error) {
	return list(s.store.Deployments, s.env, opts)
}

func (s *defaultService) ServiceStatuses(
	_ context.Context, opts ...Option[ListOptions],
) ([]status.ServiceStatus, error) {
	return list(s.store.Services, s.env, opts)
}

func (s *defaultService) CamelStatus(_ context.Context, key status.GroupedKey) (status.CamelStatus, error) {
	camel, ok := s.store.Camel.Get(key)
	if !ok {
		return status.CamelStatus{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return camel, nil
}

func (s *defaultService) TouchPresence(_ context.Context, key status.GroupedKey, user string) error {
	if key.ProjectID == "" || user == "" {
		return errors.New("presence needs a project id and a user")
	}
	if key.Environment == "" {
		key.Environment = s.env
	}
	s.store.Presence.Touch(status.Presence{Key: key, User: user, LastSeen: s.now()})
	return nil
}

func (s *defaultService) PutSession(_ context.Context, session status.Session) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}
	if session.ExpiresAt.IsZero() {
		return errors.New("session expiry is required")
	}
	s.store.Sessions.Put(session)
	return nil
}

func list[T any](cache *store.Cache[T], env string, opts []Option[ListOptions]) ([]T, error) {
	o := &ListOptions{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.ProjectID != "" {
		return cache.ListByProject(o.ProjectID, env), nil
	}
	return cache.ListByEnvironment(env), nil
}
