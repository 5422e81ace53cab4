package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type monitorMetrics struct {
	liquidatable prometheus.Gauge
	recoveryMode prometheus.Gauge
	price        prometheus.Gauge
	blockHeight  prometheus.Gauge
	scanFailures prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsRegistry *monitorMetrics
)

func metrics() *monitorMetrics {
	metricsOnce.Do(func() {
		metricsRegistry = &monitorMetrics{
			liquidatable: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "hydro",
				Subsystem: "watcher",
				Name:      "liquidatable_troves",
				Help:      "Open troves currently below the minimum collateral ratio.",
			}),
			recoveryMode: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "hydro",
				Subsystem: "watcher",
				Name:      "recovery_mode",
				Help:      "1 while the protocol is in recovery mode.",
			}),
			price: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "hydro",
				Subsystem: "watcher",
				Name:      "collateral_price",
				Help:      "Collateral price in HUSD at the last inspected block.",
			}),
			blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "hydro",
				Subsystem: "watcher",
				Name:      "block_height",
				Help:      "Last inspected block height.",
			}),
			scanFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "hydro",
				Subsystem: "watcher",
				Name:      "scan_failures_total",
				Help:      "Trove scans abandoned because a ledger read failed.",
			}),
		}
		prometheus.MustRegister(
			metricsRegistry.liquidatable,
			metricsRegistry.recoveryMode,
			metricsRegistry.price,
			metricsRegistry.blockHeight,
			metricsRegistry.scanFailures,
		)
	})
	return metricsRegistry
}
