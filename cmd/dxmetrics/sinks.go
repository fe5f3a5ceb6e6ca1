package main

import (
	"fmt"
	"io"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/discochess/dxmetrics/internal/config"
	"github.com/discochess/dxmetrics/internal/stats"
	"github.com/discochess/dxmetrics/internal/stats/dogstatsd"
	"github.com/discochess/dxmetrics/internal/stats/logger"
	"github.com/discochess/dxmetrics/internal/stats/prometheus"
)

// sinkNames lists the values accepted by --sink.
var sinkNames = []string{"log", "prometheus", "dogstatsd", "none"}

// sinks is the collector built from --sink, plus the pieces the commands
// report on afterwards.
type sinks struct {
	collector stats.Tee
	summary   *summary
	registry  *prom.Registry
}

// newSinks builds a collector for a comma-separated list of sink names.
// A summary collector is always included.
func newSinks(list string, log *zap.Logger) (*sinks, error) {
	s := &sinks{summary: newSummary()}
	tee := stats.Tee{s.summary}

	for _, name := range strings.Split(list, ",") {
		switch strings.TrimSpace(name) {
		case "log":
			tee = append(tee, logger.New(log.Named("dxmetrics.stats")))
		case "prometheus":
			s.registry = prom.NewRegistry()
			tee = append(tee, prometheus.New(s.registry))
		case "dogstatsd":
			tee = append(tee, dogstatsd.New(log.Named("dxmetrics.dogstatsd")))
		case "none", "":
		default:
			return nil, fmt.Errorf("unknown sink %q (want one of %s)", name, strings.Join(sinkNames, ", "))
		}
	}

	s.collector = tee
	return s, nil
}

// init initializes every sink that needs it, unless the configuration is a
// dry run. Failures are logged: metrics to a broken sink are dropped, the
// run continues.
func (s *sinks) init(cfg config.Config, log *zap.Logger) {
	if cfg.DryRun {
		return
	}
	if err := s.collector.Init(cfg.Sink()); err != nil {
		log.Error("sink initialization failed", zap.Error(err))
	}
}

// close flushes and releases every sink.
func (s *sinks) close() error {
	return s.collector.Close()
}

// print writes the summary table and, when enabled, the Prometheus series.
func (s *sinks) print(w io.Writer) error {
	s.summary.print(w)
	if s.registry == nil {
		return nil
	}

	families, err := s.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering prometheus metrics: %w", err)
	}
	fmt.Fprintln(w)
	printFamilies(w, families)
	return nil
}

func printFamilies(w io.Writer, families []*dto.MetricFamily) {
	for _, f := range families {
		fmt.Fprintf(w, "# TYPE %s %s\n", f.GetName(), strings.ToLower(f.GetType().String()))
		for _, m := range f.GetMetric() {
			labels := formatLabels(m.GetLabel())
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				fmt.Fprintf(w, "%s%s %g\n", f.GetName(), labels, m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				fmt.Fprintf(w, "%s%s %g\n", f.GetName(), labels, m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s_count%s %d\n", f.GetName(), labels, h.GetSampleCount())
				fmt.Fprintf(w, "%s_sum%s %g\n", f.GetName(), labels, h.GetSampleSum())
			}
		}
	}
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s=%q", p.GetName(), p.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
