package dxmetrics

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/config"
	"github.com/discochess/dxmetrics/internal/stats"
	"github.com/discochess/dxmetrics/internal/timer"
	"github.com/discochess/dxmetrics/internal/timers"
)

// Option configures a Plugin.
type Option interface {
	apply(*options)
}

// MemoryTracking configures periodic memory sampling.
type MemoryTracking struct {
	Enabled  bool
	Interval time.Duration
}

// options holds the plugin configuration.
type options struct {
	projectName    string
	dryRun         bool
	enabledMetrics []Metric
	tags           map[string]string
	sink           stats.Config
	memory         MemoryTracking
	collector      stats.Collector
	logger         *zap.Logger
	clock          timer.Clock
	maxTimers      int
	sessionID      string
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		enabledMetrics: AllMetrics(),
		tags:           make(map[string]string),
		sink: stats.Config{
			Prefix:        config.DefaultPrefix,
			FlushInterval: config.DefaultFlushIntervalSeconds * time.Second,
		},
		memory: MemoryTracking{
			Enabled:  true,
			Interval: config.DefaultLapseTimeInMilliseconds * time.Millisecond,
		},
		collector: stats.NewNoop(),
		logger:    zap.NewNop(),
		clock:     timer.SystemClock{},
		maxTimers: timers.DefaultCapacity,
		sessionID: uuid.NewString(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithProjectName sets the projectName tag. It is required: without it
// the plugin runs but emits nothing.
func WithProjectName(name string) Option {
	return optionFunc(func(o *options) {
		o.projectName = name
	})
}

// WithDryRun disables every emission while keeping the lifecycle wiring.
func WithDryRun(dryRun bool) Option {
	return optionFunc(func(o *options) {
		o.dryRun = dryRun
	})
}

// WithEnabledMetrics restricts emission to the given metrics.
// Default is every known metric.
func WithEnabledMetrics(metrics ...Metric) Option {
	return optionFunc(func(o *options) {
		o.enabledMetrics = metrics
	})
}

// WithTags merges tags into the tag set attached to every metric.
func WithTags(tags map[string]string) Option {
	return optionFunc(func(o *options) {
		for k, v := range tags {
			o.tags[k] = v
		}
	})
}

// WithSinkConfig sets the configuration passed to collectors that need
// initialization. It replaces the default prefix and flush interval.
func WithSinkConfig(cfg SinkConfig) Option {
	return optionFunc(func(o *options) {
		o.sink = cfg
	})
}

// WithMemoryTracking configures memory sampling.
// Default is enabled, every 2s.
func WithMemoryTracking(m MemoryTracking) Option {
	return optionFunc(func(o *options) {
		o.memory = m
	})
}

// WithCollector sets the metrics sink.
// If not set, a no-op collector is used.
func WithCollector(c Collector) Option {
	return optionFunc(func(o *options) {
		o.collector = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithClock sets the clock the timers read.
func WithClock(c Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

// WithMaxTimers bounds the number of concurrently tracked compilations.
// Default is 1024.
func WithMaxTimers(n int) Option {
	return optionFunc(func(o *options) {
		o.maxTimers = n
	})
}

// WithSessionID replaces the generated session id.
func WithSessionID(id string) Option {
	return optionFunc(func(o *options) {
		o.sessionID = id
	})
}

// WithConfig applies a configuration returned by LoadConfig. Unknown metric
// names in it are ignored.
func WithConfig(cfg FileConfig) Option {
	return optionFunc(func(o *options) {
		o.projectName = cfg.ProjectName
		o.dryRun = cfg.DryRun
		o.enabledMetrics = cfg.Metrics()
		for k, v := range cfg.Tags {
			o.tags[k] = v
		}
		o.sink = cfg.Sink()
		o.memory = MemoryTracking{
			Enabled:  cfg.MemoryTracking.Enabled,
			Interval: cfg.MemoryInterval(),
		}
	})
}
