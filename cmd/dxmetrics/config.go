package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Print the configuration the plugin would run with after applying the
configuration file, DX_* environment variables and flags, then report any
problems with it.

Environment variables:
  DX_PROJECT_NAME, DX_DRY_RUN, DX_ENABLED_KEYS, DX_TAGS (k:v,k:v),
  DX_DATADOG_PREFIX, DX_DATADOG_HOST, DX_DATADOG_FLUSH_INTERVAL_SECONDS,
  DX_DATADOG_DEFAULT_TAGS, DX_MEMORY_ENABLED, DX_MEMORY_LAPSE_MS`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
