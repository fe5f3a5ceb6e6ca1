package trace

import (
	"math/rand"

	"github.com/discochess/dxmetrics/internal/hooks"
)

// Timing bounds for synthesized builds, in milliseconds.
const (
	minGapMS     = 1
	maxGapMS     = 25
	minCompileMS = 50
	maxCompileMS = 1500
	minIdleMS    = 200
	maxIdleMS    = 3000
)

// Synthesize generates a trace of n sequential builds: one initial build
// followed by n-1 watch-mode rebuilds separated by idle time. The compile
// phase of each build is longer than the gaps around it.
func Synthesize(n int, rng *rand.Rand) []Step {
	between := func(lo, hi int64) int64 { return lo + rng.Int63n(hi-lo+1) }

	var (
		steps []Step
		now   int64
	)
	for build := 0; build < n; build++ {
		cycle := hooks.WatchCycle
		if build == 0 {
			cycle = hooks.InitialCycle
		} else {
			now += between(minIdleMS, maxIdleMS)
		}

		for _, e := range cycle {
			switch e {
			case hooks.AfterCompile:
				now += between(minCompileMS, maxCompileMS)
			case hooks.Environment, hooks.WatchRun:
			default:
				now += between(minGapMS, maxGapMS)
			}
			steps = append(steps, Step{Build: build, Event: e, OffsetMS: now})
		}
	}
	return steps
}
