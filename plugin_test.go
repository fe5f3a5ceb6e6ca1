package dxmetrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/discochess/dxmetrics/internal/config"
	"github.com/discochess/dxmetrics/internal/hooks"
	"github.com/discochess/dxmetrics/internal/stats"
	"github.com/discochess/dxmetrics/internal/stats/statstest"
	"github.com/discochess/dxmetrics/internal/timer"
)

type harness struct {
	plugin   *Plugin
	recorder *statstest.Recorder
	clock    *timer.ManualClock
	driver   *hooks.Driver
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	rec := statstest.New()
	clock := timer.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	base := []Option{
		WithProjectName("web-app"),
		WithSessionID("session-1"),
		WithCollector(rec),
		WithClock(clock),
		WithLogger(zap.New(core)),
		WithMemoryTracking(MemoryTracking{Enabled: false}),
	}
	p := New(append(base, opts...)...)
	t.Cleanup(func() { _ = p.Close() })

	h := hooks.New()
	p.Apply(h)

	return &harness{
		plugin:   p,
		recorder: rec,
		clock:    clock,
		driver:   hooks.NewDriver(h, nil),
		logs:     logs,
	}
}

// fire runs events in order, advancing the clock by step before each one.
func (h *harness) fire(t *testing.T, b *hooks.Build, step time.Duration, events ...hooks.Event) {
	t.Helper()
	for _, e := range events {
		h.clock.Advance(step)
		require.NoError(t, h.driver.Fire(context.Background(), e, b))
	}
}

func histograms(r *statstest.Recorder, name Metric) []float64 {
	var out []float64
	for _, c := range r.CallsFor(string(name)) {
		if c.Kind == statstest.KindHistogram {
			out = append(out, c.Value)
		}
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	p := New(WithProjectName("web-app"), WithMemoryTracking(MemoryTracking{}))
	defer p.Close()

	require.NoError(t, p.PreflightErr())
	assert.False(t, p.IsRecompilation())
	assert.NotEmpty(t, p.SessionID())
}

func TestPlugin_Tags(t *testing.T) {
	h := newHarness(t, WithTags(map[string]string{"team": "dx", "env": "ci"}))

	assert.Equal(t, []string{
		"env:ci",
		"team:dx",
		"projectName:web-app",
		"pluginVersion:" + Version,
		"sessionId:session-1",
	}, h.plugin.Tags())
}

func TestPlugin_Apply_TapsEveryEvent(t *testing.T) {
	p := New(WithProjectName("web-app"), WithMemoryTracking(MemoryTracking{}))
	defer p.Close()

	h := hooks.New()
	p.Apply(h)
	for _, e := range hooks.Events() {
		assert.Equal(t, []string{PluginName}, h.Taps(e), "event %s", e)
	}
}

func TestPlugin_InitialBuild(t *testing.T) {
	h := newHarness(t)
	b := hooks.NewBuild()

	h.fire(t, b, 0, hooks.Environment)
	h.fire(t, b, 100*time.Millisecond, hooks.BeforeCompile)
	h.fire(t, b, 250*time.Millisecond, hooks.AfterCompile)
	h.fire(t, b, 50*time.Millisecond, hooks.Done)

	assert.Equal(t, []float64{250}, histograms(h.recorder, MetricCompile))
	assert.Equal(t, []float64{400}, histograms(h.recorder, MetricCompileSession))
	assert.Empty(t, h.recorder.CallsFor(string(MetricRecompile)))
	assert.Empty(t, h.recorder.CallsFor(string(MetricRecompileSession)))
	assert.True(t, h.plugin.IsRecompilation())

	// The environment event counts the session start.
	calls := h.recorder.CallsFor(string(MetricCompileSession))
	require.NotEmpty(t, calls)
	assert.Equal(t, statstest.Call{
		Kind:  statstest.KindIncrement,
		Name:  string(MetricCompileSession),
		Value: 1,
		Tags:  h.plugin.Tags(),
	}, calls[0])
}

func TestPlugin_TrackAllKinds(t *testing.T) {
	h := newHarness(t)
	b := hooks.NewBuild()

	h.fire(t, b, 0, hooks.Environment, hooks.BeforeCompile)
	h.fire(t, b, 42*time.Millisecond, hooks.AfterCompile)

	var kinds []statstest.Kind
	for _, c := range h.recorder.CallsFor(string(MetricCompile)) {
		kinds = append(kinds, c.Kind)
		assert.Equal(t, float64(42), c.Value)
	}
	assert.Equal(t, []statstest.Kind{statstest.KindHistogram, statstest.KindGauge, statstest.KindIncrement}, kinds)
}

func TestPlugin_WatchRebuild(t *testing.T) {
	h := newHarness(t)

	first := hooks.NewBuild()
	h.fire(t, first, 10*time.Millisecond, hooks.InitialCycle...)
	require.True(t, h.plugin.IsRecompilation())
	h.recorder.Reset()

	second := hooks.NewBuild()
	h.fire(t, second, 0, hooks.WatchRun)
	h.fire(t, second, 5*time.Millisecond, hooks.BeforeCompile)
	h.fire(t, second, 0, hooks.Compilation)
	h.fire(t, second, 30*time.Millisecond, hooks.AfterCompile)
	h.fire(t, second, 15*time.Millisecond, hooks.Done)

	assert.Equal(t, []float64{30}, histograms(h.recorder, MetricRecompile))
	assert.Equal(t, []float64{50}, histograms(h.recorder, MetricRecompileSession))
	assert.Empty(t, h.recorder.CallsFor(string(MetricCompile)))
	assert.Empty(t, h.recorder.CallsFor(string(MetricCompileSession)))
	assert.True(t, h.plugin.IsRecompilation())
}

func TestPlugin_WatchRebuildWithoutCompilation(t *testing.T) {
	h := newHarness(t)
	h.fire(t, hooks.NewBuild(), 10*time.Millisecond, hooks.InitialCycle...)
	h.recorder.Reset()

	b := hooks.NewBuild()
	h.fire(t, b, 0, hooks.WatchRun)
	h.fire(t, b, 8*time.Millisecond, hooks.BeforeCompile)
	h.fire(t, b, 70*time.Millisecond, hooks.AfterCompile)
	h.fire(t, b, 2*time.Millisecond, hooks.Done)

	assert.Equal(t, []float64{70}, histograms(h.recorder, MetricRecompile))
	assert.Equal(t, []float64{80}, histograms(h.recorder, MetricRecompileSession))
	assert.Empty(t, h.recorder.CallsFor(string(MetricCompile)))
	assert.Empty(t, h.recorder.CallsFor(string(MetricCompileSession)))
}

func TestPlugin_AfterCompileWithoutToken(t *testing.T) {
	h := newHarness(t)
	b := hooks.NewBuild()

	require.NotPanics(t, func() {
		h.fire(t, b, 10*time.Millisecond, hooks.AfterCompile)
	})
	assert.Empty(t, h.recorder.Calls())
	assert.Equal(t, 1, h.logs.FilterMessage("no compilation id present").Len())
}

func TestPlugin_CompilationCopiesToken(t *testing.T) {
	h := newHarness(t)
	b := hooks.NewBuild()

	h.fire(t, b, 0, hooks.Environment, hooks.BeforeCompile, hooks.Compilation)

	params, ok := b.Params.Get(tokenKey)
	require.True(t, ok)
	compilation, ok := b.Compilation.Get(tokenKey)
	require.True(t, ok)
	assert.Equal(t, params, compilation)
	assert.Contains(t, params, string(MetricCompile)+":")
}

func TestPlugin_BeforeCompileSkipsActivePhase(t *testing.T) {
	h := newHarness(t)

	first := hooks.NewBuild()
	second := hooks.NewBuild()
	h.fire(t, first, 0, hooks.Environment, hooks.BeforeCompile)
	h.fire(t, second, 0, hooks.BeforeCompile)

	_, ok := second.Params.Get(tokenKey)
	assert.False(t, ok)
	assert.Equal(t, 1, h.logs.FilterMessage("compilation already being timed").Len())
}

func TestPlugin_DoneWithoutSessionTimer(t *testing.T) {
	h := newHarness(t)

	h.fire(t, hooks.NewBuild(), 10*time.Millisecond, hooks.Done)

	assert.Empty(t, h.recorder.Calls())
	assert.True(t, h.plugin.IsRecompilation())
}

func TestPlugin_ZeroDurationIsReported(t *testing.T) {
	h := newHarness(t)
	b := hooks.NewBuild()

	h.fire(t, b, 0, hooks.InitialCycle...)

	assert.Equal(t, []float64{0}, histograms(h.recorder, MetricCompile))
	assert.Equal(t, []float64{0}, histograms(h.recorder, MetricCompileSession))
}

func TestPlugin_DryRun(t *testing.T) {
	h := newHarness(t, WithDryRun(true))

	h.fire(t, hooks.NewBuild(), 10*time.Millisecond, hooks.InitialCycle...)

	assert.Empty(t, h.recorder.Calls())
	assert.Empty(t, h.recorder.Inits())
	assert.True(t, h.plugin.IsRecompilation())
}

func TestPlugin_EnabledMetrics(t *testing.T) {
	h := newHarness(t, WithEnabledMetrics(MetricCompile))

	h.fire(t, hooks.NewBuild(), 10*time.Millisecond, hooks.InitialCycle...)

	for _, c := range h.recorder.Calls() {
		assert.Equal(t, string(MetricCompile), c.Name)
	}
	assert.Len(t, histograms(h.recorder, MetricCompile), 1)
}

func TestPlugin_MissingProjectName(t *testing.T) {
	h := newHarness(t, WithProjectName(""))

	err := h.plugin.PreflightErr()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "projectName", cfgErr.Field)
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("preflight check was not successful").Len())

	require.NotPanics(t, func() {
		h.fire(t, hooks.NewBuild(), 10*time.Millisecond, hooks.InitialCycle...)
	})
	assert.Empty(t, h.recorder.Calls())
	assert.Empty(t, h.recorder.Inits())
}

func TestPlugin_CollectorInitFailure(t *testing.T) {
	rec := statstest.New()
	initErr := errors.New("agent unreachable")
	rec.FailInit(initErr)

	p := New(
		WithProjectName("web-app"),
		WithCollector(rec),
		WithMemoryTracking(MemoryTracking{}),
	)
	defer p.Close()

	assert.ErrorIs(t, p.PreflightErr(), initErr)

	h := hooks.New()
	p.Apply(h)
	d := hooks.NewDriver(h, nil)
	require.NoError(t, d.Run(context.Background(), hooks.NewBuild(), hooks.InitialCycle...))
	assert.NotEmpty(t, rec.Calls())
}

func TestPlugin_SinkConfigPassedToCollector(t *testing.T) {
	sink := stats.Config{Prefix: "custom.", Address: "127.0.0.1:8125", FlushInterval: time.Second}
	h := newHarness(t, WithSinkConfig(sink))

	assert.Equal(t, []stats.Config{sink}, h.recorder.Inits())
}

func TestPlugin_OverlappingBuilds(t *testing.T) {
	h := newHarness(t)
	h.fire(t, hooks.NewBuild(), 0, hooks.InitialCycle...)
	h.recorder.Reset()

	first, second, third := hooks.NewBuild(), hooks.NewBuild(), hooks.NewBuild()

	h.fire(t, first, 0, hooks.WatchRun)
	h.fire(t, first, 5*time.Millisecond, hooks.BeforeCompile)
	// second starts while first is compiling and is not timed.
	h.fire(t, second, 10*time.Millisecond, hooks.BeforeCompile)
	h.fire(t, first, 25*time.Millisecond, hooks.AfterCompile)
	h.fire(t, second, 5*time.Millisecond, hooks.AfterCompile)
	// third starts after first finished and is timed on its own.
	h.fire(t, third, 0, hooks.BeforeCompile)
	h.fire(t, third, 20*time.Millisecond, hooks.AfterCompile)

	_, ok := second.Params.Get(tokenKey)
	assert.False(t, ok)
	assert.Equal(t, []float64{35, 20}, histograms(h.recorder, MetricRecompile))
	assert.Equal(t, 1, h.logs.FilterMessage("compilation already being timed").Len())
	assert.Equal(t, 1, h.logs.FilterMessage("no compilation id present").Len())
}

func TestPlugin_ConcurrentBeforeCompileTimesOne(t *testing.T) {
	h := newHarness(t)

	const n = 16
	builds := make([]*hooks.Build, n)
	for i := range builds {
		builds[i] = hooks.NewBuild()
	}

	var wg sync.WaitGroup
	for _, b := range builds {
		wg.Add(1)
		go func(b *hooks.Build) {
			defer wg.Done()
			_ = h.driver.Fire(context.Background(), hooks.BeforeCompile, b)
		}(b)
	}
	wg.Wait()

	var tokens int
	for _, b := range builds {
		if _, ok := b.Params.Get(tokenKey); ok {
			tokens++
		}
	}
	assert.Equal(t, 1, tokens)

	h.clock.Advance(60 * time.Millisecond)
	for _, b := range builds {
		h.fire(t, b, 0, hooks.AfterCompile)
	}
	assert.Equal(t, []float64{60}, histograms(h.recorder, MetricCompile))
}

func TestPlugin_WithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ProjectName = "from-config"
	cfg.DryRun = true
	cfg.Tags = map[string]string{"team": "dx"}
	cfg.MemoryTracking.Enabled = false

	p := New(WithConfig(cfg), WithSessionID("s"))
	defer p.Close()

	require.NoError(t, p.PreflightErr())
	assert.Equal(t, []string{"team:dx", "projectName:from-config", "pluginVersion:" + Version, "sessionId:s"}, p.Tags())
}

func TestPlugin_MemorySampling(t *testing.T) {
	rec := statstest.New()
	p := New(
		WithProjectName("web-app"),
		WithCollector(rec),
		WithMemoryTracking(MemoryTracking{Enabled: true, Interval: 5 * time.Millisecond}),
	)

	require.Eventually(t, func() bool {
		return len(histograms(rec, MetricProcessMemory)) > 0
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Close())
}

type closingCollector struct {
	stats.Noop
	err error
}

func (c *closingCollector) Close() error { return c.err }

func TestPlugin_CloseClosesCollector(t *testing.T) {
	want := errors.New("flush failed")
	p := New(
		WithProjectName("web-app"),
		WithCollector(&closingCollector{err: want}),
		WithMemoryTracking(MemoryTracking{}),
	)
	assert.ErrorIs(t, p.Close(), want)
}

func TestPlugin_CloseTwice(t *testing.T) {
	p := New(WithProjectName("web-app"), WithMemoryTracking(MemoryTracking{}))
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Close(), ErrClosed)
}
