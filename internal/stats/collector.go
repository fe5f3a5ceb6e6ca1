// Package stats defines the metrics sink that build measurements are
// emitted to, and the names of the metrics this library emits.
package stats

import "time"

// Metric names a measurement this library emits.
type Metric string

// Metric names used throughout the library.
const (
	// Build timing metrics.
	MetricRecompile        Metric = "recompile"
	MetricRecompileSession Metric = "recompile_session"
	MetricCompile          Metric = "compile"
	MetricCompileSession   Metric = "compile_session"

	// Memory metrics, in KiB.
	MetricProcessMemory Metric = "process_memory"
	MetricHeapUsed      Metric = "heap_used"
	MetricHeapTotal     Metric = "heap_total"
)

// AllMetrics returns every known metric name.
func AllMetrics() []Metric {
	return []Metric{
		MetricRecompile,
		MetricRecompileSession,
		MetricCompile,
		MetricCompileSession,
		MetricProcessMemory,
		MetricHeapUsed,
		MetricHeapTotal,
	}
}

// Valid reports whether m is a known metric name.
func (m Metric) Valid() bool {
	for _, known := range AllMetrics() {
		if m == known {
			return true
		}
	}
	return false
}

// Collector is a fire-and-forget metrics sink. Implementations must not
// block the caller on delivery; failures are the sink's own concern.
type Collector interface {
	// Histogram records value in a distribution.
	Histogram(name string, value float64, tags []string)

	// Gauge sets the current value.
	Gauge(name string, value float64, tags []string)

	// Increment adds value to a counter.
	Increment(name string, value float64, tags []string)
}

// Config configures a sink that needs initialization before use.
type Config struct {
	// Prefix is prepended to every metric name.
	Prefix string

	// Address is the backend endpoint, when the sink talks to one.
	Address string

	// FlushInterval is how often buffered metrics are sent.
	FlushInterval time.Duration

	// DefaultTags are added by the sink itself to every metric.
	DefaultTags []string
}

// Initializer is implemented by collectors that must be initialized with a
// Config before they can emit.
type Initializer interface {
	Init(cfg Config) error
}
