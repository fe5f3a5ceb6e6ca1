// Package dogstatsd provides a stats collector that sends metrics to a
// Datadog agent over the DogStatsD protocol.
package dogstatsd

import (
	"errors"
	"math"
	"sync"

	"github.com/DataDog/datadog-go/v5/statsd"
	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/stats"
)

// ErrNotInitialized is returned by Flush when Init never succeeded.
var ErrNotInitialized = errors.New("dogstatsd: collector not initialized")

// client is the subset of statsd.ClientInterface the collector uses.
type client interface {
	Histogram(name string, value float64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Flush() error
	Close() error
}

// dialer creates the underlying client from the sink config.
type dialer func(cfg stats.Config) (client, error)

// Collector implements stats.Collector on top of a DogStatsD client.
// Emissions before a successful Init are dropped.
type Collector struct {
	logger *zap.Logger
	dial   dialer

	mu     sync.RWMutex
	client client
}

// Compile-time checks that Collector implements stats.Collector and stats.Initializer.
var (
	_ stats.Collector   = (*Collector)(nil)
	_ stats.Initializer = (*Collector)(nil)
)

// New creates an uninitialized collector.
// If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger, dial: dial}
}

func dial(cfg stats.Config) (client, error) {
	var opts []statsd.Option
	if cfg.Prefix != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Prefix))
	}
	if len(cfg.DefaultTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.DefaultTags))
	}
	if cfg.FlushInterval > 0 {
		opts = append(opts, statsd.WithBufferFlushInterval(cfg.FlushInterval))
	}
	return statsd.New(cfg.Address, opts...)
}

// Init connects to the agent. Calling Init again replaces the client.
func (c *Collector) Init(cfg stats.Config) error {
	cl, err := c.dial(cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	prev := c.client
	c.client = cl
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Histogram sends a histogram sample.
func (c *Collector) Histogram(name string, value float64, tags []string) {
	if cl := c.get(); cl != nil {
		c.report(name, cl.Histogram(name, value, tags, 1))
	}
}

// Gauge sends a gauge value.
func (c *Collector) Gauge(name string, value float64, tags []string) {
	if cl := c.get(); cl != nil {
		c.report(name, cl.Gauge(name, value, tags, 1))
	}
}

// Increment sends a count, rounded to the nearest integer.
func (c *Collector) Increment(name string, value float64, tags []string) {
	if cl := c.get(); cl != nil {
		c.report(name, cl.Count(name, int64(math.Round(value)), tags, 1))
	}
}

// Flush sends buffered metrics immediately.
func (c *Collector) Flush() error {
	cl := c.get()
	if cl == nil {
		return ErrNotInitialized
	}
	return cl.Flush()
}

// Close flushes and closes the client. Closing a collector that was never
// initialized does nothing.
func (c *Collector) Close() error {
	c.mu.Lock()
	cl := c.client
	c.client = nil
	c.mu.Unlock()

	if cl == nil {
		return nil
	}
	return cl.Close()
}

func (c *Collector) get() client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// report logs a delivery failure. The agent connection is best effort.
func (c *Collector) report(name string, err error) {
	if err != nil {
		c.logger.Debug("dropped metric", zap.String("metric", name), zap.Error(err))
	}
}
