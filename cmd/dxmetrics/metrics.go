package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/discochess/dxmetrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the metrics the plugin emits",
	Long: `List every metric name the plugin knows, and whether the resolved
configuration enables it.`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	enabled := make(map[dxmetrics.Metric]bool)
	for _, m := range cfg.Metrics() {
		enabled[m] = true
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tNAME\tENABLED")
	for _, m := range dxmetrics.AllMetrics() {
		fmt.Fprintf(tw, "%s\t%s%s\t%t\n", m, cfg.Datadog.Prefix, m, enabled[m] && !cfg.DryRun)
	}
	return tw.Flush()
}
