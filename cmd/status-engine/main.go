// Package main is the entry point for the status engine.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/integrio/status-engine/cmd/status-engine/app"
	"github.com/integrio/status-engine/internal/config"
	"github.com/integrio/status-engine/internal/logging"
)

func main() {
	// STATUS_ENGINE_LOG_LEVEL and STATUS_ENGINE_LOG_FORMAT win over the config file
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	logger, err := logging.New(v.GetString("LOG_LEVEL"), v.GetString("LOG_FORMAT"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	logging.SetControllerLogger(logger)

	err = app.NewRootCmd().Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
