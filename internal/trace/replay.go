package trace

import (
	"context"
	"fmt"

	"github.com/discochess/dxmetrics/internal/hooks"
	"github.com/discochess/dxmetrics/internal/timer"
)

// Replay fires every step on d, moving clock to the step's offset first.
// Offsets are relative to the clock's time when Replay is called. Each
// distinct build id gets its own hooks.Build.
func Replay(ctx context.Context, d *hooks.Driver, clock *timer.ManualClock, steps []Step) error {
	if err := Validate(steps); err != nil {
		return err
	}

	start := clock.Now()
	builds := make(map[int]*hooks.Build)
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		b, ok := builds[s.Build]
		if !ok {
			b = hooks.NewBuild()
			builds[s.Build] = b
		}

		clock.Set(start.Add(s.Offset()))
		if err := d.Fire(ctx, s.Event, b); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}
