// Package prometheus provides a Prometheus-based stats collector.
//
// Tags of the form "key:value" become label pairs; a bare tag becomes a
// label whose value is "true". The label set of a metric is fixed by the
// first emission of that metric, and later emissions with a different set
// of label names are dropped.
package prometheus

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/dxmetrics/internal/stats"
)

// DefaultBuckets spans 10ms to roughly 80s, which covers both single
// compilations and whole build sessions.
var DefaultBuckets = prometheus.ExponentialBuckets(10, 2, 14)

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	registry prometheus.Registerer
	buckets  []float64

	mu         sync.RWMutex
	prefix     string
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// Compile-time checks that Collector implements stats.Collector and stats.Initializer.
var (
	_ stats.Collector   = (*Collector)(nil)
	_ stats.Initializer = (*Collector)(nil)
)

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		buckets:    DefaultBuckets,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Init adopts the configured metric name prefix. It must be called before
// the first emission to take effect for every metric.
func (c *Collector) Init(cfg stats.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefix = cfg.Prefix
	return nil
}

// Increment adds value to a counter. Negative values are dropped.
func (c *Collector) Increment(name string, value float64, tags []string) {
	if value < 0 {
		return
	}
	labels := tagsToLabels(tags)
	counter, err := c.getOrCreateCounter(name, labels).GetMetricWith(labels)
	if err != nil {
		return
	}
	counter.Add(value)
}

// Gauge sets a gauge metric.
func (c *Collector) Gauge(name string, value float64, tags []string) {
	labels := tagsToLabels(tags)
	gauge, err := c.getOrCreateGauge(name, labels).GetMetricWith(labels)
	if err != nil {
		return
	}
	gauge.Set(value)
}

// Histogram records a value in a histogram.
func (c *Collector) Histogram(name string, value float64, tags []string) {
	labels := tagsToLabels(tags)
	histogram, err := c.getOrCreateHistogram(name, labels).GetMetricWith(labels)
	if err != nil {
		return
	}
	histogram.Observe(value)
}

func (c *Collector) getOrCreateCounter(name string, labels prometheus.Labels) *prometheus.CounterVec {
	c.mu.RLock()
	counter, ok := c.counters[name]
	c.mu.RUnlock()
	if ok {
		return counter
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if counter, ok = c.counters[name]; ok {
		return counter
	}

	fqName := metricName(c.prefix, name) + "_total"
	counter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: fqName,
		Help: fqName,
	}, labelNames(labels))
	if err := c.registry.Register(counter); err != nil {
		// If already registered, try to get the existing metric.
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				c.counters[name] = existing
				return existing
			}
		}
		// Fallback: return the new counter anyway (registration failed but metric works).
	}
	c.counters[name] = counter
	return counter
}

func (c *Collector) getOrCreateGauge(name string, labels prometheus.Labels) *prometheus.GaugeVec {
	c.mu.RLock()
	gauge, ok := c.gauges[name]
	c.mu.RUnlock()
	if ok {
		return gauge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gauge, ok = c.gauges[name]; ok {
		return gauge
	}

	fqName := metricName(c.prefix, name)
	gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: fqName,
		Help: fqName,
	}, labelNames(labels))
	if err := c.registry.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				c.gauges[name] = existing
				return existing
			}
		}
	}
	c.gauges[name] = gauge
	return gauge
}

func (c *Collector) getOrCreateHistogram(name string, labels prometheus.Labels) *prometheus.HistogramVec {
	c.mu.RLock()
	histogram, ok := c.histograms[name]
	c.mu.RUnlock()
	if ok {
		return histogram
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, ok = c.histograms[name]; ok {
		return histogram
	}

	fqName := metricName(c.prefix, name) + "_ms"
	histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    fqName,
		Help:    fqName,
		Buckets: c.buckets,
	}, labelNames(labels))
	if err := c.registry.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				c.histograms[name] = existing
				return existing
			}
		}
	}
	c.histograms[name] = histogram
	return histogram
}

// metricName joins prefix and name into a valid Prometheus metric name.
func metricName(prefix, name string) string {
	return sanitize(prefix + name)
}

func tagsToLabels(tags []string) prometheus.Labels {
	labels := make(prometheus.Labels, len(tags))
	for _, tag := range tags {
		key, value, ok := strings.Cut(tag, ":")
		if key == "" {
			continue
		}
		if !ok {
			value = "true"
		}
		labels[sanitize(key)] = value
	}
	return labels
}

func labelNames(labels prometheus.Labels) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sanitize replaces every character Prometheus rejects in metric and label
// names with an underscore.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
