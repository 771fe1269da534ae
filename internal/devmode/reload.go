package devmode

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/integrio/status-engine/internal/breaker"
	"github.com/integrio/status-engine/internal/otel"
	"github.com/integrio/status-engine/internal/status"
)

// Remote operations recorded in metrics
const (
	opUpload     = "upload"
	opReload     = "reload"
	opIntrospect = "introspect"
)

// Reload pushes the project files into the running container and triggers a
// recompilation. The sequence stops at the first failed call and the container
// is left with code not loaded. It reports whether the code is loaded.
func (c *Controller) Reload(ctx context.Context, cmd status.DevModeCommand) bool {
	key := cmd.Key()
	start := c.opts.now()

	err := c.reload(ctx, key)
	loaded := err == nil

	c.opts.metrics.RecordReload(ctx, key.ProjectID, c.opts.now().Sub(start), loaded)
	if !c.sink.SetCodeLoaded(ctx, key, loaded) && loaded {
		// the container went away while we were uploading
		loaded = false
		err = fmt.Errorf("container %s is no longer present", key.Name)
	}

	if err != nil {
		otel.RecordError(trace.SpanFromContext(ctx), err)
		c.logger.Warnw("Reload failed", "key", key.String(), "error", err)
		c.publishResult(ctx, cmd, false, err.Error())
		return false
	}

	c.logger.Infow("Project code loaded", "key", key.String(), "duration", c.opts.now().Sub(start))
	c.publishResult(ctx, cmd, true, "")
	return true
}

func (c *Controller) reload(ctx context.Context, key status.GroupedKey) error {
	cs, ok := c.sink.Store().Containers.Get(key)
	if !ok {
		return fmt.Errorf("container %s is not present", key.Name)
	}
	if cs.Phase != status.PhaseRunning {
		return fmt.Errorf("container %s is %s, not running", key.Name, cs.Phase)
	}
	if c.opts.files == nil {
		return errors.New("no project file source configured")
	}

	base, err := c.adapter.BaseURL(cs)
	if err != nil {
		return fmt.Errorf("resolve address of %s: %w", key.Name, err)
	}

	files, err := c.opts.files.ProjectFiles(ctx, key.ProjectID)
	if err != nil {
		return fmt.Errorf("read project files: %w", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(otel.AttrFileCount.Int(len(files)))

	for _, f := range files {
		target := base + "/upload/" + escapePath(f.Path)
		_, err := c.call(ctx, key, opUpload, c.opts.requestTimeout, func(ctx context.Context) ([]byte, error) {
			return nil, c.opts.client.Put(ctx, target, f.Content)
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", f.Path, err)
		}
	}

	_, err = c.call(ctx, key, opReload, c.reloadTimeout(), func(ctx context.Context) ([]byte, error) {
		return c.opts.client.Get(ctx, base+"/dev/reload?reload=true")
	})
	if err != nil {
		return fmt.Errorf("trigger reload: %w", err)
	}
	return nil
}

func (c *Controller) reloadTimeout() time.Duration {
	if c.opts.reloadTimeout > 0 {
		return c.opts.reloadTimeout
	}
	return c.opts.requestTimeout
}

// call runs one remote call through the breaker of the container. Circuits are
// keyed by container rather than address, since host ports change on restart.
func (c *Controller) call(
	ctx context.Context,
	key status.GroupedKey,
	operation string,
	timeout time.Duration,
	fn func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	body, err := c.opts.breakers.Execute(key.String(), func() ([]byte, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(callCtx)
	})

	switch {
	case errors.Is(err, breaker.ErrOpen):
		c.opts.metrics.RecordRemoteCall(ctx, operation, outcomeShortCircuit)
	case err != nil:
		c.opts.metrics.RecordRemoteCall(ctx, operation, outcomeFailure)
	default:
		c.opts.metrics.RecordRemoteCall(ctx, operation, outcomeSuccess)
	}
	return body, err
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
