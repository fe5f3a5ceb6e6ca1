package stats

import (
	"io"

	"go.uber.org/multierr"
)

// Tee fans every emission out to several collectors.
type Tee []Collector

// Compile-time checks that Tee implements Collector and Initializer.
var (
	_ Collector   = Tee(nil)
	_ Initializer = Tee(nil)
)

// Histogram forwards to every collector.
func (t Tee) Histogram(name string, value float64, tags []string) {
	for _, c := range t {
		c.Histogram(name, value, tags)
	}
}

// Gauge forwards to every collector.
func (t Tee) Gauge(name string, value float64, tags []string) {
	for _, c := range t {
		c.Gauge(name, value, tags)
	}
}

// Increment forwards to every collector.
func (t Tee) Increment(name string, value float64, tags []string) {
	for _, c := range t {
		c.Increment(name, value, tags)
	}
}

// Init initializes every collector that needs it.
func (t Tee) Init(cfg Config) error {
	var err error
	for _, c := range t {
		if in, ok := c.(Initializer); ok {
			err = multierr.Append(err, in.Init(cfg))
		}
	}
	return err
}

// Close closes every collector that holds resources.
func (t Tee) Close() error {
	var err error
	for _, c := range t {
		if cl, ok := c.(io.Closer); ok {
			err = multierr.Append(err, cl.Close())
		}
	}
	return err
}
