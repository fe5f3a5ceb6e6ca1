package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/config"
)

var (
	// Global flags.
	configFile  string
	projectName string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "dxmetrics",
	Short: "Compile and recompile timing metrics for build tools",
	Long: `dxmetrics times the initial compilation and every watch-mode
recompilation of a build, per compilation and per session, and sends the
durations to a metrics backend.

Configuration is read from an optional YAML file and DX_* environment
variables.

Examples:
  # Simulate ten builds and print what would be emitted
  dxmetrics simulate --project web-app --builds 10

  # Replay a recorded trace into Datadog
  DX_DATADOG_HOST=127.0.0.1:8125 dxmetrics replay --sink dogstatsd ./traces/ci.jsonl.zst

  # Show the resolved configuration
  dxmetrics config -c dxmetrics.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "project name (overrides configuration)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger returns a development logger at debug level with --verbose,
// and a production logger otherwise.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// loadConfig resolves the configuration from the file, the environment
// and the --project flag, in increasing precedence.
func loadConfig(ctx context.Context) (config.Config, error) {
	cfg, err := config.Load(ctx, configFile)
	if err != nil {
		return config.Config{}, err
	}
	if projectName != "" {
		cfg.ProjectName = projectName
	}
	return cfg, nil
}

// requireValid loads the configuration and rejects it if invalid.
func requireValid(ctx context.Context) (config.Config, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
