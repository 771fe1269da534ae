// Package app provides application lifecycle management for the status engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/integrio/status-engine/internal/config"
)

// EngineApp encapsulates all components needed to run the status engine
// and provides lifecycle management and graceful shutdown
type EngineApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
	logger     *zap.SugaredLogger

	shutdownTimeout time.Duration
	stopOnce        sync.Once
	stopErr         error

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start runs the backend adapter, the scheduler and the HTTP server.
// It blocks until Stop is called or one of them fails; a failure stops the others.
func (app *EngineApp) Start() error {
	c := app.components
	g, ctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		if err := c.Adapter.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s adapter failed: %w", c.Adapter.Kind(), err)
		}
		return nil
	})

	g.Go(func() error {
		return c.Scheduler.Start(ctx)
	})

	g.Go(func() error {
		app.logger.Infof("Server listening on %s", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
		defer cancel()
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop gracefully stops the application with the given timeout.
// Calling it more than once returns the first result.
func (app *EngineApp) Stop(timeout time.Duration) error {
	app.stopOnce.Do(func() {
		app.stopErr = app.stop(timeout)
	})
	return app.stopErr
}

func (app *EngineApp) stop(timeout time.Duration) error {
	app.logger.Info("Shutting down status engine...")
	c := app.components

	// no new ticks, no new commands
	c.Scheduler.Stop()
	c.detach()

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	c.Hub.Close()
	c.Controller.Close()

	if err := c.Bus.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain event bus: %w", err))
	}
	if err := c.Telemetry.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown telemetry: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	app.logger.Info("Status engine shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *EngineApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *EngineApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired components
func (app *EngineApp) Components() *AppComponents {
	return app.components
}
