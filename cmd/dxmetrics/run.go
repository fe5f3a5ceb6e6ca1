package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/dxmetrics"
	"github.com/discochess/dxmetrics/internal/config"
	"github.com/discochess/dxmetrics/internal/hooks"
	"github.com/discochess/dxmetrics/internal/stats"
	"github.com/discochess/dxmetrics/internal/timer"
	"github.com/discochess/dxmetrics/internal/trace"
)

// shared hides Init and Close so several plugins can emit to one collector
// that the command owns.
type shared struct {
	stats.Collector
}

// replayTrace runs steps through a fresh plugin whose timers read a manual
// clock, so the emitted durations are the trace's own. Memory sampling is
// disabled: the process being sampled is not the one that was recorded.
func replayTrace(ctx context.Context, cfg config.Config, steps []trace.Step, c stats.Collector, log *zap.Logger) error {
	clock := timer.NewManualClock(time.Now())
	plugin := dxmetrics.New(
		dxmetrics.WithConfig(cfg),
		dxmetrics.WithCollector(shared{c}),
		dxmetrics.WithLogger(log),
		dxmetrics.WithClock(clock),
		dxmetrics.WithMemoryTracking(dxmetrics.MemoryTracking{}),
	)
	defer plugin.Close()

	h := hooks.New()
	plugin.Apply(h)

	if err := trace.Replay(ctx, hooks.NewDriver(h, log.Named("hooks")), clock, steps); err != nil {
		return fmt.Errorf("replaying trace: %w", err)
	}
	return nil
}
