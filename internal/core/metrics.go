package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsRegistry builds a registry from plugin collectors plus the shared
// collectors passed in extra.
func MetricsRegistry(plugins []Plugin, extra ...prometheus.Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, plugin := range plugins {
		for _, collector := range plugin.Collectors() {
			registry.MustRegister(collector)
		}
	}
	for _, collector := range extra {
		registry.MustRegister(collector)
	}

	return registry
}

// HealthCollector exports plugin health as printmon_plugin_health{plugin,status}.
type HealthCollector struct {
	plugins []Plugin
	desc    *prometheus.Desc
}

func NewHealthCollector(plugins []Plugin) *HealthCollector {
	return &HealthCollector{
		plugins: plugins,
		desc: prometheus.NewDesc(
			"printmon_plugin_health",
			"Plugin health (1 for the current status)",
			[]string{"plugin", "status"}, nil,
		),
	}
}

func (c *HealthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *HealthCollector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range c.plugins {
		current := p.Health()
		for _, status := range []HealthStatus{HealthHealthy, HealthDegraded, HealthError} {
			value := 0.0
			if status == current {
				value = 1
			}
			ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, value, p.ID(), string(status))
		}
	}
}
