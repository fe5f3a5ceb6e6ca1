// Package dxmetricsfx provides fx modules for the build metrics plugin.
//
// Both modules require a config.Config and a *zap.Logger. When a
// *hooks.Hooks is available the plugin is applied to it.
package dxmetricsfx

import (
	"context"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/dxmetrics"
	"github.com/discochess/dxmetrics/internal/config"
	"github.com/discochess/dxmetrics/internal/hooks"
	"github.com/discochess/dxmetrics/internal/stats"
	"github.com/discochess/dxmetrics/internal/stats/logger"
	"github.com/discochess/dxmetrics/internal/stats/prometheus"
)

// Module provides a plugin that logs every metric at debug level.
var Module = fx.Module("dxmetrics",
	fx.Provide(
		newLogCollector,
		newPlugin,
	),
)

// PrometheusModule provides a plugin that records metrics in the
// prometheus.Registerer it is given.
var PrometheusModule = fx.Module("dxmetrics-prometheus",
	fx.Provide(
		newPrometheusCollector,
		newPlugin,
	),
)

func newLogCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("dxmetrics.stats"))
}

func newPrometheusCollector(reg prom.Registerer) stats.Collector {
	return prometheus.New(reg)
}

// Params holds dependencies for creating the plugin.
type Params struct {
	fx.In

	Config    config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Hooks     *hooks.Hooks `optional:"true"`
	Lifecycle fx.Lifecycle
}

// Result holds the provided plugin.
type Result struct {
	fx.Out

	Plugin *dxmetrics.Plugin
}

func newPlugin(p Params) Result {
	plugin := dxmetrics.New(
		dxmetrics.WithConfig(p.Config),
		dxmetrics.WithCollector(p.Collector),
		dxmetrics.WithLogger(p.Logger),
	)
	if p.Hooks != nil {
		plugin.Apply(p.Hooks)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return plugin.Close()
		},
	})

	return Result{Plugin: plugin}
}
