package devmode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/status"
)

// CollectCamelStatus fetches the runtime self-status documents of every running
// integration container and stores them. Containers that fail keep their
// previous snapshot.
func (c *Controller) CollectCamelStatus(ctx context.Context) error {
	var errs []error
	for _, key := range c.sink.ContainerKeys(status.KindDevMode, status.KindProject) {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs, ok := c.sink.Store().Containers.Get(key)
		if !ok || cs.Phase != status.PhaseRunning || cs.InTransit {
			continue
		}
		if err := c.collectCamel(ctx, cs); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) collectCamel(ctx context.Context, cs status.ContainerStatus) error {
	base, err := c.adapter.BaseURL(cs)
	if err != nil {
		return err
	}

	key := cs.Key()
	snapshots := make(map[string]json.RawMessage, len(c.opts.introspection))
	for _, name := range c.opts.introspection {
		body, err := c.call(ctx, key, opIntrospect, c.opts.requestTimeout, func(ctx context.Context) ([]byte, error) {
			return c.opts.client.Get(ctx, base+"/dev/"+name)
		})
		if err != nil {
			return fmt.Errorf("introspect %s: %w", name, err)
		}
		if !gjson.ValidBytes(body) {
			return fmt.Errorf("introspect %s: response is not valid JSON", name)
		}
		snapshots[name] = json.RawMessage(body)
	}

	camel := status.CamelStatus{
		ProjectID:     key.ProjectID,
		Environment:   key.Environment,
		ContainerName: key.Name,
		ContextState:  contextState(snapshots["context"]),
		Snapshots:     snapshots,
		CollectedAt:   c.opts.now(),
	}
	if !c.sink.PutCamel(camel) {
		// removed while collecting
		return nil
	}
	if err := c.bus.Publish(ctx, eventbus.TopicCamelStatus, key.String(), camel); err != nil {
		c.logger.Warnw("Failed to publish runtime status", "key", key.String(), "error", err)
	}
	return nil
}

func contextState(doc json.RawMessage) string {
	if len(doc) == 0 {
		return ""
	}
	if state := gjson.GetBytes(doc, "context.state"); state.Exists() {
		return state.String()
	}
	return gjson.GetBytes(doc, "state").String()
}
