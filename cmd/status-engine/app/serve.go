package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	engine "github.com/integrio/status-engine/internal/app"
	"github.com/integrio/status-engine/internal/config"
	"github.com/integrio/status-engine/internal/logging"
)

const defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the status engine",
		Long: `Start the status engine.

The engine requires a configuration file (--config) that specifies:
- The environment and the active backend (kubernetes or docker)
- The dev-mode image, port and call timeouts
- Circuit breaker and scheduler settings
- Where project files are read from on reload`,
		RunE: runServe,
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().String("address", "", "Address of the operational HTTP routes (overrides the config file)")
	cmd.Flags().String("backend", "", "Active backend, kubernetes or docker (overrides the config file)")

	for _, name := range []string{"config", "address", "backend"} {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			zap.S().Fatalf("Failed to bind %s flag: %v", name, err)
		}
	}
	if err := cmd.MarkFlagRequired("config"); err != nil {
		zap.S().Fatalf("Failed to mark config flag as required: %v", err)
	}

	return cmd
}

// loadConfig reads the config file and applies the command line overrides
func loadConfig() (*config.Config, error) {
	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	overridden := false
	if address := viper.GetString("address"); address != "" {
		cfg.Address = address
		overridden = true
	}
	if backendType := viper.GetString("backend"); backendType != "" {
		cfg.Backend.Type = backendType
		overridden = true
	}
	if overridden {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

// configureLogging rebuilds the process logger from the config file unless
// the environment already chose a level
func configureLogging(cfg *config.Config) error {
	level := cfg.LogLevel
	if viper.GetBool("debug") {
		level = "debug"
	} else if viper.GetString("log_level") != "" {
		return nil
	}
	if level == "" && cfg.LogFormat == "" {
		return nil
	}

	logger, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logging.SetControllerLogger(logger)
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := configureLogging(cfg); err != nil {
		return err
	}

	logger := zap.S()
	logger.Infow("Loaded configuration",
		"path", viper.GetString("config"),
		"environment", cfg.Environment,
		"backend", cfg.Backend.Type,
	)

	ctx := context.Background()
	engineApp, err := engine.NewEngineApp(ctx,
		engine.WithConfig(cfg),
		engine.WithAddress(cfg.Address),
		engine.WithLogger(logger),
		engine.WithShutdownTimeout(defaultGracefulTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to build status engine: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- engineApp.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Infow("Received signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Errorw("Status engine stopped", "error", err)
		}
		if stopErr := engineApp.Stop(defaultGracefulTimeout); stopErr != nil {
			logger.Errorw("Shutdown incomplete", "error", stopErr)
		}
		return err
	}

	if err := engineApp.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errCh
}
