package dxmetrics

import "github.com/discochess/dxmetrics/internal/stats"

// Version is reported in the pluginVersion tag of every metric.
const Version = "1.4.0"

// Metric names a measurement the plugin emits.
type Metric = stats.Metric

// Metrics the plugin emits.
const (
	MetricRecompile        = stats.MetricRecompile
	MetricRecompileSession = stats.MetricRecompileSession
	MetricCompile          = stats.MetricCompile
	MetricCompileSession   = stats.MetricCompileSession
	MetricProcessMemory    = stats.MetricProcessMemory
	MetricHeapUsed         = stats.MetricHeapUsed
	MetricHeapTotal        = stats.MetricHeapTotal
)

// AllMetrics returns every metric the plugin knows.
func AllMetrics() []Metric {
	return stats.AllMetrics()
}
