// Package dxmetrics instruments a build tool's compilation lifecycle. It
// times the initial compilation and every watch-mode recompilation, both
// per compilation and per build session, and emits the durations to a
// metrics backend with a fixed set of tags.
//
// Example usage:
//
//	plugin := dxmetrics.New(
//	    dxmetrics.WithProjectName("web-app"),
//	    dxmetrics.WithCollector(collector),
//	)
//	defer plugin.Close()
//
//	plugin.Apply(host.Hooks())
package dxmetrics

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/memory"
	"github.com/discochess/dxmetrics/internal/timers"
	"github.com/discochess/dxmetrics/internal/tracker"
)

// PluginName is the name the plugin taps hooks under.
const PluginName = "DXMetricsPlugin"

// tokenKey is the attribute under which a compilation's timer key travels
// from the invocation params to the compilation object.
const tokenKey = "__id"

// Plugin binds lifecycle events to timers and metric emission.
// A Plugin is safe for concurrent use.
type Plugin struct {
	opts         options
	logger       *zap.Logger
	tracker      *tracker.Tracker
	timers       *timers.Registry
	sampler      *memory.Sampler
	preflightErr error

	// isRecompilation flips to true once, when the first session completes.
	isRecompilation atomic.Bool
	closed          atomic.Bool
}

// New creates a plugin. A failed preflight check is logged and leaves the
// plugin in a non-emitting mode; the build proceeds uninstrumented.
// See PreflightErr.
func New(opts ...Option) *Plugin {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	p := &Plugin{
		opts:   cfg,
		logger: cfg.logger.Named("dxmetrics"),
	}
	p.preflightErr = p.validate()

	p.tracker = tracker.New(cfg.collector, tracker.Config{
		ProjectName:    cfg.projectName,
		PluginVersion:  Version,
		SessionID:      cfg.sessionID,
		Tags:           cfg.tags,
		DryRun:         cfg.dryRun || p.preflightErr != nil,
		EnabledMetrics: cfg.enabledMetrics,
		Sink:           cfg.sink,
	}, p.logger.Named("tracker"))

	p.timers = timers.New(
		timers.WithClock(cfg.clock),
		timers.WithCapacity(cfg.maxTimers),
		timers.WithLogger(p.logger.Named("timers")),
	)

	p.preflight()
	return p
}

func (p *Plugin) validate() error {
	if p.opts.projectName == "" {
		return &ConfigurationError{Field: "projectName", Reason: "no project name was defined"}
	}
	return nil
}

func (p *Plugin) preflight() {
	if p.preflightErr != nil {
		p.logger.Error("preflight check was not successful, metrics are disabled",
			zap.Error(p.preflightErr),
		)
		return
	}

	p.logger.Debug("options",
		zap.String("projectName", p.opts.projectName),
		zap.Bool("dryRun", p.opts.dryRun),
		zap.Any("enabledMetrics", p.opts.enabledMetrics),
		zap.Any("tags", p.opts.tags),
		zap.String("sinkPrefix", p.opts.sink.Prefix),
		zap.Bool("memoryTracking", p.opts.memory.Enabled),
		zap.Duration("memoryInterval", p.opts.memory.Interval),
	)

	if p.opts.memory.Enabled {
		p.sampler = memory.New(p.tracker, p.opts.memory.Interval,
			memory.WithLogger(p.logger.Named("memory")),
		)
		p.sampler.Start(context.Background())
	}

	p.logger.Info("preflight check successful, ready to start")
}

// PreflightErr returns the problems found at construction, or nil.
// A configuration problem disables emission; a collector that failed to
// initialize is kept and still receives metrics.
func (p *Plugin) PreflightErr() error {
	return multierr.Append(p.preflightErr, p.tracker.Err())
}

// SessionID returns the id tagged onto every metric of this process.
func (p *Plugin) SessionID() string {
	return p.opts.sessionID
}

// IsRecompilation reports whether the first build session has completed.
func (p *Plugin) IsRecompilation() bool {
	return p.isRecompilation.Load()
}

// Tags returns the tags attached to every metric.
func (p *Plugin) Tags() []string {
	return p.tracker.Tags()
}

// Apply taps the plugin into every lifecycle event it measures.
func (p *Plugin) Apply(h Hooks) {
	p.logger.Debug("starting session", zap.String("plugin", PluginName), zap.String("sessionId", p.opts.sessionID))

	h.On(EventEnvironment, PluginName, p.onEnvironment)
	h.On(EventWatchRun, PluginName, p.onWatchRun)
	h.OnAsync(EventBeforeCompile, PluginName, p.onBeforeCompile)
	h.On(EventCompilation, PluginName, p.onCompilation)
	h.On(EventAfterCompile, PluginName, p.onAfterCompile)
	h.On(EventDone, PluginName, p.onDone)
}

// Close stops memory sampling and closes the collector if it holds resources.
// Events fired after Close are still handled.
func (p *Plugin) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	if p.sampler != nil {
		p.sampler.Stop()
	}
	if c, ok := p.opts.collector.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("closing collector: %w", err)
		}
	}
	return nil
}

func (p *Plugin) sessionMetric() Metric {
	if p.IsRecompilation() {
		return MetricRecompileSession
	}
	return MetricCompileSession
}

func (p *Plugin) compileMetric() Metric {
	if p.IsRecompilation() {
		return MetricRecompile
	}
	return MetricCompile
}

func (p *Plugin) onEnvironment(*Build) {
	m := p.sessionMetric()
	p.timers.CreateSingleton(string(m))
	p.tracker.Increment(m)
}

// onWatchRun restarts the session timer on watch-mode re-entry, where the
// environment event does not fire again.
func (p *Plugin) onWatchRun(*Build) {
	if !p.IsRecompilation() {
		return
	}
	p.timers.CreateSingleton(string(MetricRecompileSession))
	p.tracker.Increment(MetricRecompileSession)
}

func (p *Plugin) onBeforeCompile(b *Build, done func()) {
	defer done()

	phase := string(p.compileMetric())
	token, ok := p.timers.CreateMultiplexedIfIdle(phase)
	if !ok {
		p.logger.Debug("compilation already being timed", zap.String("phase", phase))
		return
	}
	b.Params.Set(tokenKey, token)
}

// onCompilation copies the timer token from the invocation params onto the
// compilation object, which is what afterCompile receives.
func (p *Plugin) onCompilation(b *Build) {
	if token, ok := b.Params.Get(tokenKey); ok {
		b.Compilation.Set(tokenKey, token)
	}
}

func (p *Plugin) onAfterCompile(b *Build) {
	token, ok := b.Compilation.Get(tokenKey)
	if !ok {
		token, ok = b.Params.Get(tokenKey)
	}
	if !ok {
		p.logger.Debug("no compilation id present", zap.Error(ErrMissingToken))
		return
	}

	ms, ok := p.timers.Consume(token)
	if !ok {
		p.logger.Debug("timer didn't return any milliseconds", zap.String("key", token), zap.Error(ErrMissingTimer))
		return
	}
	p.tracker.TrackAll(p.compileMetric(), float64(ms))
}

func (p *Plugin) onDone(*Build) {
	p.logger.Debug("done")

	m := p.sessionMetric()
	if ms, ok := p.timers.Consume(string(m)); ok {
		p.tracker.TrackAll(m, float64(ms))
	} else {
		p.logger.Debug("timer didn't return any milliseconds", zap.String("key", string(m)), zap.Error(ErrMissingTimer))
	}

	// Everything after the first completed session is a recompilation.
	if m == MetricCompileSession {
		p.isRecompilation.Store(true)
	}
}
