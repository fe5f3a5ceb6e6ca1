package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var replayCmd = &cobra.Command{
	Use:   "replay [URI...]",
	Short: "Replay recorded lifecycle traces through the plugin",
	Long: `Read one or more recorded traces and run them through the plugin
with their original timing. Each trace gets its own plugin and session; all
of them emit to the same sinks.

A URI is a local path, gs://bucket/object or s3://bucket/key. Objects
ending in .zst or .gz are decompressed.

Examples:
  dxmetrics replay -p web-app ./traces/ci.jsonl.zst
  dxmetrics replay -p web-app --sink dogstatsd gs://build-traces/ci/2024-01-01.jsonl.zst s3://traces/local.jsonl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

var (
	replaySink        string
	replayParallelism int
)

func init() {
	replayCmd.Flags().StringVar(&replaySink, "sink", "none", "comma-separated sinks: log, prometheus, dogstatsd, none")
	replayCmd.Flags().IntVar(&replayParallelism, "parallel", 4, "number of traces replayed at once")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireValid(ctx)
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	s, err := newSinks(replaySink, log)
	if err != nil {
		return err
	}
	s.init(cfg, log)

	g, gctx := errgroup.WithContext(ctx)
	if replayParallelism > 0 {
		g.SetLimit(replayParallelism)
	}
	for _, uri := range args {
		uri := uri
		g.Go(func() error {
			steps, err := loadTrace(gctx, uri)
			if err != nil {
				return fmt.Errorf("%s: %w", uri, err)
			}
			log.Debug("replaying trace", zap.String("uri", uri), zap.Int("steps", len(steps)))
			if err := replayTrace(gctx, cfg, steps, s.collector, log.Named("dxmetrics")); err != nil {
				return fmt.Errorf("%s: %w", uri, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := s.close(); err != nil {
		log.Warn("closing sinks", zap.Error(err))
	}

	fmt.Printf("Replayed %d traces for %s\n\n", len(args), cfg.ProjectName)
	return s.print(os.Stdout)
}
