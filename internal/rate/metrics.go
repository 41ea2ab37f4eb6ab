package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	remainingGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "printmon_rate_limit_remaining",
			Help: "Remaining requests in the provider budget window",
		},
		[]string{"provider", "window"},
	)
	blockedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printmon_rate_limit_blocked_total",
			Help: "Requests refused by the local request budget",
		},
		[]string{"provider"},
	)
	lastStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "printmon_rate_limit_last_status_code",
			Help: "Last HTTP status code observed by the budget wrapper",
		},
		[]string{"provider"},
	)
)

// MetricsCollectors exposes shared rate-limit collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		remainingGauge,
		blockedCounter,
		lastStatusGauge,
	}
}
