// Package tracker applies the emission policy to build measurements and
// forwards accepted ones, with a fixed tag set, to a stats.Collector.
package tracker

import (
	"sort"

	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/stats"
)

// Config holds everything the tracker derives its policy and tags from.
type Config struct {
	ProjectName   string
	PluginVersion string
	SessionID     string

	// Tags are user supplied and precede the built-in tags.
	Tags map[string]string

	// DryRun disables every emission.
	DryRun bool

	// EnabledMetrics is the allow-list.
	EnabledMetrics []stats.Metric

	// Sink initializes collectors that implement stats.Initializer.
	Sink stats.Config
}

// Tracker is safe for concurrent use; its state is immutable after New.
type Tracker struct {
	collector stats.Collector
	policy    Policy
	tags      []string
	logger    *zap.Logger
	initErr   error
}

// New builds a tracker. When tracking is enabled and the collector needs
// initialization, it is initialized here; a failure is logged and kept
// for Err, and the tracker remains usable.
func New(collector stats.Collector, cfg Config, logger *zap.Logger) *Tracker {
	if collector == nil {
		collector = stats.NewNoop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		collector: collector,
		policy:    NewPolicy(!cfg.DryRun, cfg.EnabledMetrics),
		tags:      buildTags(cfg),
		logger:    logger,
	}
	t.logger.Debug("internally defined tags", zap.Strings("tags", t.tags))
	t.preflight(cfg.Sink)
	return t
}

func buildTags(cfg Config) []string {
	keys := make([]string, 0, len(cfg.Tags))
	for k := range cfg.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]string, 0, len(keys)+3)
	for _, k := range keys {
		tags = append(tags, k+":"+cfg.Tags[k])
	}
	return append(tags,
		"projectName:"+cfg.ProjectName,
		"pluginVersion:"+cfg.PluginVersion,
		"sessionId:"+cfg.SessionID,
	)
}

func (t *Tracker) preflight(sink stats.Config) {
	if !t.policy.Enabled() {
		return
	}
	in, ok := t.collector.(stats.Initializer)
	if !ok {
		return
	}
	if err := in.Init(sink); err != nil {
		t.initErr = err
		t.logger.Error("tracker preflight check was not successful", zap.Error(err))
	}
}

// Err returns the collector initialization error, if any.
func (t *Tracker) Err() error {
	return t.initErr
}

// Policy returns the emission policy.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Tags returns a copy of the tags attached to every emission.
func (t *Tracker) Tags() []string {
	out := make([]string, len(t.tags))
	copy(out, t.tags)
	return out
}

// TrackHistogram records value in the metric's distribution.
func (t *Tracker) TrackHistogram(m stats.Metric, value float64) {
	if !t.shouldTrack(m, value, "histogram") {
		return
	}
	t.collector.Histogram(string(m), value, t.Tags())
}

// TrackGauge sets the metric's current value.
func (t *Tracker) TrackGauge(m stats.Metric, value float64) {
	if !t.shouldTrack(m, value, "gauge") {
		return
	}
	t.collector.Gauge(string(m), value, t.Tags())
}

// TrackIncrement adds value to the metric's counter.
func (t *Tracker) TrackIncrement(m stats.Metric, value float64) {
	if !t.shouldTrack(m, value, "increment") {
		return
	}
	t.collector.Increment(string(m), value, t.Tags())
}

// Increment adds one to the metric's counter.
func (t *Tracker) Increment(m stats.Metric) {
	t.TrackIncrement(m, 1)
}

// TrackAll records one measurement as histogram, gauge and increment.
func (t *Tracker) TrackAll(m stats.Metric, value float64) {
	t.TrackHistogram(m, value)
	t.TrackGauge(m, value)
	t.TrackIncrement(m, value)
}

func (t *Tracker) shouldTrack(m stats.Metric, value float64, kind string) bool {
	t.logger.Debug("tracking",
		zap.String("metric", string(m)),
		zap.String("kind", kind),
		zap.Float64("value", value),
	)
	if !t.policy.Enabled() {
		t.logger.Debug("tracking disabled, will not track", zap.String("metric", string(m)))
		return false
	}
	if !t.policy.Allowed(m) {
		t.logger.Debug("tracking key is not allowed, will not track", zap.String("metric", string(m)))
		return false
	}
	return true
}
