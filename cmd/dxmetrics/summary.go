package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/discochess/dxmetrics/internal/stats"
)

// Compile-time check that summary implements stats.Collector.
var _ stats.Collector = (*summary)(nil)

// summary keeps every histogram observation per metric so the commands can
// print distribution statistics after a run.
type summary struct {
	mu       sync.Mutex
	samples  map[string][]float64
	counters map[string]float64
}

func newSummary() *summary {
	return &summary{
		samples:  make(map[string][]float64),
		counters: make(map[string]float64),
	}
}

func (s *summary) Histogram(name string, value float64, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[name] = append(s.samples[name], value)
}

func (s *summary) Gauge(name string, value float64, tags []string) {}

func (s *summary) Increment(name string, value float64, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += value
}

// describe holds the statistics printed for one metric.
type describe struct {
	n              int
	min, p50, mean float64
	p90, max       float64

	// stdDev is negative for single observations.
	stdDev float64
}

func describeSample(sample []float64) describe {
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	d := describe{
		n:      len(sorted),
		min:    sorted[0],
		max:    sorted[len(sorted)-1],
		mean:   stat.Mean(sorted, nil),
		p50:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		p90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
		stdDev: -1,
	}
	if len(sorted) > 1 {
		d.stdDev = stat.StdDev(sorted, nil)
	}
	return d
}

func (s *summary) print(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var names []string
	for name := range s.samples {
		seen[name] = true
		names = append(names, name)
	}
	for name := range s.counters {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tCOUNT\tMIN\tP50\tMEAN\tP90\tMAX\tSTDDEV\tCOUNTER")
	for _, name := range names {
		sample := s.samples[name]
		if len(sample) == 0 {
			fmt.Fprintf(tw, "%s\t0\t-\t-\t-\t-\t-\t-\t%g\n", name, s.counters[name])
			continue
		}
		d := describeSample(sample)
		stdDev := "-"
		if d.stdDev >= 0 {
			stdDev = fmt.Sprintf("%.1f", d.stdDev)
		}
		fmt.Fprintf(tw, "%s\t%d\t%.0f\t%.0f\t%.1f\t%.0f\t%.0f\t%s\t%g\n",
			name, d.n, d.min, d.p50, d.mean, d.p90, d.max, stdDev, s.counters[name])
	}
	tw.Flush()
}
