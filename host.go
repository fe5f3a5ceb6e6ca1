package dxmetrics

import (
	"context"

	"github.com/discochess/dxmetrics/internal/config"
	"github.com/discochess/dxmetrics/internal/hooks"
	"github.com/discochess/dxmetrics/internal/stats"
	"github.com/discochess/dxmetrics/internal/timer"
)

// Event names a lifecycle event of the build host.
type Event = hooks.Event

// Lifecycle events the plugin taps.
const (
	EventEnvironment   = hooks.Environment
	EventWatchRun      = hooks.WatchRun
	EventBeforeCompile = hooks.BeforeCompile
	EventCompilation   = hooks.Compilation
	EventAfterCompile  = hooks.AfterCompile
	EventDone          = hooks.Done
)

// Build carries the per-invocation params and the compilation object of
// one build. The zero value of Values is ready to use.
type Build = hooks.Build

// Values is an attribute bag on a host object.
type Values = hooks.Values

// Handler handles a synchronous event.
type Handler = hooks.Handler

// AsyncHandler handles an event the host waits on until done is called.
type AsyncHandler = hooks.AsyncHandler

// Hooks is the registration surface a build host exposes to plugins.
type Hooks interface {
	On(e Event, name string, fn Handler)
	OnAsync(e Event, name string, fn AsyncHandler)
}

// Compile-time check that the bundled hook registry satisfies Hooks.
var _ Hooks = (*hooks.Hooks)(nil)

// NewBuild returns a build with empty params and compilation objects.
func NewBuild() *Build {
	return hooks.NewBuild()
}

// Collector is the metrics sink the plugin emits to.
type Collector = stats.Collector

// SinkConfig is passed to collectors that need initialization.
type SinkConfig = stats.Config

// Clock is the time source read by the plugin's timers.
type Clock = timer.Clock

// FileConfig is a configuration loaded from YAML and the environment.
type FileConfig = config.Config

// LoadConfig reads the configuration file at path, which may be empty, and
// applies DX_* environment overrides. Use it with WithConfig.
func LoadConfig(ctx context.Context, path string) (FileConfig, error) {
	return config.Load(ctx, path)
}
