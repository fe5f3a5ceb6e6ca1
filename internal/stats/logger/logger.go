// Package logger provides a zap-based stats collector that logs metrics.
package logger

import (
	"sync"

	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/stats"
)

// Collector implements stats.Collector by logging metrics via zap.
type Collector struct {
	logger *zap.Logger

	mu     sync.RWMutex
	prefix string
}

// Compile-time checks that Collector implements stats.Collector and stats.Initializer.
var (
	_ stats.Collector   = (*Collector)(nil)
	_ stats.Initializer = (*Collector)(nil)
)

// New creates a new logger-based collector.
// If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger}
}

// Init adopts the configured metric name prefix.
func (c *Collector) Init(cfg stats.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefix = cfg.Prefix
	return nil
}

// Histogram logs a histogram observation.
func (c *Collector) Histogram(name string, value float64, tags []string) {
	c.log("histogram", name, value, tags)
}

// Gauge logs a gauge value.
func (c *Collector) Gauge(name string, value float64, tags []string) {
	c.log("gauge", name, value, tags)
}

// Increment logs a counter increment.
func (c *Collector) Increment(name string, value float64, tags []string) {
	c.log("counter", name, value, tags)
}

func (c *Collector) log(kind, name string, value float64, tags []string) {
	c.mu.RLock()
	prefix := c.prefix
	c.mu.RUnlock()

	c.logger.Debug(kind,
		zap.String("metric", prefix+name),
		zap.Float64("value", value),
		zap.Strings("tags", tags),
	)
}
