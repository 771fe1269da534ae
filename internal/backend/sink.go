package backend

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/status"
	"github.com/integrio/status-engine/internal/store"
)

// Sink applies normalized observations to the store and announces them on the bus.
// Both adapters write exclusively through a Sink.
type Sink struct {
	store  *store.Store
	bus    eventbus.Publisher
	env    string
	logger *zap.SugaredLogger

	readyOnce sync.Once
}

// NewSink creates a sink for one environment
func NewSink(st *store.Store, bus eventbus.Publisher, env string, logger *zap.SugaredLogger) *Sink {
	return &Sink{store: st, bus: bus, env: env, logger: logger}
}

// Environment returns the environment observations are recorded under
func (s *Sink) Environment() string {
	return s.env
}

// Store returns the underlying store
func (s *Sink) Store() *store.Store {
	return s.store
}

type keyed interface {
	Key() status.GroupedKey
}

// PutContainer stores an observed container. CodeLoaded survives as long as the
// backend reports the same container instance; a new instance starts unloaded.
func (s *Sink) PutContainer(ctx context.Context, observed status.ContainerStatus) status.ContainerStatus {
	observed.InTransit = false
	observed.Commands = status.CommandsFor(observed.Kind)

	stored := s.store.Containers.Update(observed.Key(),
		func(current status.ContainerStatus, exists bool) (status.ContainerStatus, bool) {
			if exists && current.ContainerID != "" && current.ContainerID == observed.ContainerID {
				observed.CodeLoaded = current.CodeLoaded
			}
			return observed, true
		})

	s.publish(ctx, eventbus.TopicContainerUpdated, stored.Key(), stored)
	return stored
}

// MarkInTransit flags a container while a lifecycle request is outstanding.
// Absent containers get a pending placeholder so the request is visible.
func (s *Sink) MarkInTransit(ctx context.Context, placeholder status.ContainerStatus) {
	stored := s.store.Containers.Update(placeholder.Key(),
		func(current status.ContainerStatus, exists bool) (status.ContainerStatus, bool) {
			if !exists {
				current = placeholder
				current.Phase = status.PhasePending
				current.Commands = status.CommandsFor(current.Kind)
			}
			current.InTransit = true
			return current, true
		})
	s.publish(ctx, eventbus.TopicContainerUpdated, stored.Key(), stored)
}

// ClearInTransit ends an outstanding lifecycle request that failed. A placeholder
// the backend never reported is removed again.
func (s *Sink) ClearInTransit(ctx context.Context, key status.GroupedKey) {
	var found, removed bool
	stored := s.store.Containers.Update(key,
		func(current status.ContainerStatus, exists bool) (status.ContainerStatus, bool) {
			found = exists && current.InTransit
			if !found {
				return current, exists
			}
			current.InTransit = false
			removed = current.ContainerID == ""
			return current, !removed
		})

	switch {
	case removed:
		s.store.Camel.Delete(key)
		s.publish(ctx, eventbus.TopicContainerDeleted, key, key)
	case found:
		s.publish(ctx, eventbus.TopicContainerUpdated, key, stored)
	}
}

// SetCodeLoaded updates the code-loaded flag of a stored container.
// It reports false when the container is no longer stored.
func (s *Sink) SetCodeLoaded(ctx context.Context, key status.GroupedKey, loaded bool) bool {
	var found bool
	stored := s.store.Containers.Update(key,
		func(current status.ContainerStatus, exists bool) (status.ContainerStatus, bool) {
			found = exists
			current.CodeLoaded = loaded
			return current, exists
		})
	if found {
		s.publish(ctx, eventbus.TopicContainerUpdated, key, stored)
	}
	return found
}

// UpdateUsage records resource usage on a stored container
func (s *Sink) UpdateUsage(ctx context.Context, key status.GroupedKey, memory, cpu string) bool {
	var found, changed bool
	stored := s.store.Containers.Update(key,
		func(current status.ContainerStatus, exists bool) (status.ContainerStatus, bool) {
			found = exists
			changed = current.MemoryInfo != memory || current.CPUInfo != cpu
			current.MemoryInfo = memory
			current.CPUInfo = cpu
			return current, exists
		})
	if found && changed {
		s.publish(ctx, eventbus.TopicContainerUpdated, key, stored)
	}
	return found
}

// DeleteContainer removes a container and its runtime snapshots.
// Nothing is published when the key was not stored.
func (s *Sink) DeleteContainer(ctx context.Context, key status.GroupedKey) bool {
	// container first: PutCamel only stores while the container is present
	removed := s.store.Containers.Delete(key)
	s.store.Camel.Delete(key)
	if !removed {
		return false
	}
	s.publish(ctx, eventbus.TopicContainerDeleted, key, key)
	return true
}

// PutCamel stores a runtime snapshot while its container is stored. It reports
// false, storing nothing, when the container was removed in the meantime.
func (s *Sink) PutCamel(camel status.CamelStatus) bool {
	key := camel.Key()
	stored := false
	s.store.Containers.Update(key, func(current status.ContainerStatus, exists bool) (status.ContainerStatus, bool) {
		if exists {
			s.store.Camel.Put(key, camel)
			stored = true
		}
		return current, exists
	})
	return stored
}

// DeleteContainerByName resolves the key of a container from its name
func (s *Sink) DeleteContainerByName(ctx context.Context, name string) bool {
	key, _, ok := s.store.Containers.FindByName(s.env, name)
	if !ok {
		return false
	}
	return s.DeleteContainer(ctx, key)
}

// PutDeployment stores an observed deployment
func (s *Sink) PutDeployment(ctx context.Context, observed status.DeploymentStatus) {
	putRecord(ctx, s, s.store.Deployments, eventbus.TopicDeploymentUpdated, observed)
}

// DeleteDeploymentByName removes a deployment by name
func (s *Sink) DeleteDeploymentByName(ctx context.Context, name string) bool {
	return deleteByName(ctx, s, s.store.Deployments, eventbus.TopicDeploymentDeleted, name)
}

// PutService stores an observed service
func (s *Sink) PutService(ctx context.Context, observed status.ServiceStatus) {
	putRecord(ctx, s, s.store.Services, eventbus.TopicServiceUpdated, observed)
}

// DeleteServiceByName removes a service by name
func (s *Sink) DeleteServiceByName(ctx context.Context, name string) bool {
	return deleteByName(ctx, s, s.store.Services, eventbus.TopicServiceDeleted, name)
}

// ContainerKeys returns the stored container keys of the sink's environment
// whose kind matches one of kinds. An empty kinds list matches everything.
func (s *Sink) ContainerKeys(kinds ...status.ResourceKind) []status.GroupedKey {
	keys := s.store.Containers.Keys(s.env)
	if len(kinds) == 0 {
		return keys
	}
	out := keys[:0]
	for _, k := range keys {
		cs, ok := s.store.Containers.Get(k)
		if !ok {
			continue
		}
		for _, kind := range kinds {
			if cs.Kind == kind {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// Ready publishes the system-ready event the first time it is called
func (s *Sink) Ready(ctx context.Context) {
	s.readyOnce.Do(func() {
		s.logger.Infow("Initial backend state stored", "environment", s.env)
		if err := s.bus.Publish(ctx, eventbus.TopicSystemReady, s.env, s.env); err != nil {
			s.logger.Warnw("Failed to publish readiness", "error", err)
		}
	})
}

func (s *Sink) publish(ctx context.Context, topic eventbus.Topic, key status.GroupedKey, payload any) {
	if err := s.bus.Publish(ctx, topic, key.String(), payload); err != nil {
		s.logger.Warnw("Failed to publish status event", "topic", topic, "key", key.String(), "error", err)
	}
}

func putRecord[T keyed](ctx context.Context, s *Sink, cache *store.Cache[T], topic eventbus.Topic, record T) {
	cache.Put(record.Key(), record)
	s.publish(ctx, topic, record.Key(), record)
}

func deleteByName[T any](ctx context.Context, s *Sink, cache *store.Cache[T], topic eventbus.Topic, name string) bool {
	key, _, ok := cache.FindByName(s.env, name)
	if !ok || !cache.Delete(key) {
		return false
	}
	s.publish(ctx, topic, key, key)
	return true
}
