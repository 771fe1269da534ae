package devmode

import (
	"context"
	"errors"

	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/status"
)

// toggleLogs starts following the container log, or stops it when a stream
// is already running for the container.
func (c *Controller) toggleLogs(cmd status.DevModeCommand) error {
	key := cmd.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if stream, ok := c.streams[key]; ok {
		delete(c.streams, key)
		stream.cancel()
		return nil
	}
	if c.streamCtx.Err() != nil {
		return c.streamCtx.Err()
	}

	ctx, cancel := context.WithCancel(c.streamCtx)
	stream := &logStream{cancel: cancel}
	c.streams[key] = stream

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.removeStream(key, stream)

		err := c.adapter.StreamLogs(ctx, key.Name, func(line string) {
			entry := status.LogLine{Key: key, Line: line, At: c.opts.now()}
			if err := c.bus.Publish(ctx, eventbus.TopicContainerLog, key.String(), entry); err != nil {
				c.logger.Debugw("Dropping log line", "key", key.String(), "error", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warnw("Log stream ended", "key", key.String(), "error", err)
			return
		}
		c.logger.Debugw("Log stream closed", "key", key.String())
	}()

	return nil
}

// stopLogs cancels the log stream of a container if one is running
func (c *Controller) stopLogs(key status.GroupedKey) {
	c.mu.Lock()
	stream, ok := c.streams[key]
	delete(c.streams, key)
	c.mu.Unlock()

	if ok {
		stream.cancel()
	}
}

// Streaming reports whether the log of a container is being followed
func (c *Controller) Streaming(key status.GroupedKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.streams[key]
	return ok
}

func (c *Controller) removeStream(key status.GroupedKey, stream *logStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streams[key] == stream {
		delete(c.streams, key)
	}
	stream.cancel()
}
