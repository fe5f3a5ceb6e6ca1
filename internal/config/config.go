// Package config loads plugin configuration for hosts that are not Go
// programs calling the options directly: a YAML file, then DX_* environment
// variables on top.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/discochess/dxmetrics/internal/stats"
)

// Defaults.
const (
	DefaultPrefix                  = "dx_metrics."
	DefaultFlushIntervalSeconds    = 2
	DefaultLapseTimeInMilliseconds = 2000
)

// Config mirrors the plugin options.
type Config struct {
	ProjectName        string            `yaml:"projectName" env:"DX_PROJECT_NAME, overwrite"`
	DryRun             bool              `yaml:"dryRun" env:"DX_DRY_RUN, overwrite"`
	EnabledKeysToTrack []string          `yaml:"enabledKeysToTrack" env:"DX_ENABLED_KEYS, overwrite"`
	Tags               map[string]string `yaml:"tags" env:"DX_TAGS, overwrite"`
	Datadog            Datadog           `yaml:"datadogConfig" env:", prefix=DX_DATADOG_"`
	MemoryTracking     MemoryTracking    `yaml:"memoryTracking" env:", prefix=DX_MEMORY_"`
}

// Datadog configures the metrics sink.
type Datadog struct {
	Prefix               string   `yaml:"prefix" env:"PREFIX, overwrite"`
	Host                 string   `yaml:"host" env:"HOST, overwrite"`
	FlushIntervalSeconds int      `yaml:"flushIntervalSeconds" env:"FLUSH_INTERVAL_SECONDS, overwrite"`
	DefaultTags          []string `yaml:"defaultTags" env:"DEFAULT_TAGS, overwrite"`
}

// MemoryTracking configures periodic memory sampling.
type MemoryTracking struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED, overwrite"`
	LapseTimeInMilliseconds int  `yaml:"lapseTimeInMilliseconds" env:"LAPSE_MS, overwrite"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		EnabledKeysToTrack: metricNames(stats.AllMetrics()),
		Tags:               map[string]string{},
		Datadog: Datadog{
			Prefix:               DefaultPrefix,
			FlushIntervalSeconds: DefaultFlushIntervalSeconds,
		},
		MemoryTracking: MemoryTracking{
			Enabled:                 true,
			LapseTimeInMilliseconds: DefaultLapseTimeInMilliseconds,
		},
	}
}

// Load reads path (skipped when empty) over the defaults, then applies
// environment overrides from the process environment.
func Load(ctx context.Context, path string) (Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment source.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: env,
	}); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem with c.
func (c Config) Validate() error {
	var errs []error
	if c.ProjectName == "" {
		errs = append(errs, errors.New("no project name was defined"))
	}
	for _, key := range c.EnabledKeysToTrack {
		if !stats.Metric(key).Valid() {
			errs = append(errs, fmt.Errorf("unknown metric %q in enabledKeysToTrack", key))
		}
	}
	if c.MemoryTracking.Enabled && c.MemoryTracking.LapseTimeInMilliseconds <= 0 {
		errs = append(errs, errors.New("memoryTracking.lapseTimeInMilliseconds must be positive"))
	}
	return errors.Join(errs...)
}

// Metrics returns the enabled metrics, skipping unknown names.
func (c Config) Metrics() []stats.Metric {
	out := make([]stats.Metric, 0, len(c.EnabledKeysToTrack))
	for _, key := range c.EnabledKeysToTrack {
		if m := stats.Metric(key); m.Valid() {
			out = append(out, m)
		}
	}
	return out
}

// Sink converts the datadog section to a sink config.
func (c Config) Sink() stats.Config {
	return stats.Config{
		Prefix:        c.Datadog.Prefix,
		Address:       c.Datadog.Host,
		FlushInterval: time.Duration(c.Datadog.FlushIntervalSeconds) * time.Second,
		DefaultTags:   c.Datadog.DefaultTags,
	}
}

// MemoryInterval is the sampling period, or zero when sampling is disabled.
func (c Config) MemoryInterval() time.Duration {
	if !c.MemoryTracking.Enabled {
		return 0
	}
	return time.Duration(c.MemoryTracking.LapseTimeInMilliseconds) * time.Millisecond
}

func metricNames(ms []stats.Metric) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m)
	}
	return out
}
