package store

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type storeMetrics struct {
	fetches       *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	staleDiscards prometheus.Counter
	fetchLatency  prometheus.Histogram
}

var (
	metricsOnce     sync.Once
	metricsRegistry *storeMetrics
)

// Metrics returns the lazily-initialised store metrics registry.
func Metrics() *storeMetrics {
	metricsOnce.Do(func() {
		metricsRegistry = &storeMetrics{
			fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hydro",
				Subsystem: "store",
				Name:      "fetches_total",
				Help:      "Snapshot fetches segmented by outcome.",
			}, []string{"outcome"}),
			cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hydro",
				Subsystem: "store",
				Name:      "cache_lookups_total",
				Help:      "Read-through lookups segmented by hit or miss.",
			}, []string{"result"}),
			staleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "hydro",
				Subsystem: "store",
				Name:      "stale_discards_total",
				Help:      "Completed fetches discarded for carrying an outdated block tag.",
			}),
			fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "hydro",
				Subsystem: "store",
				Name:      "fetch_duration_seconds",
				Help:      "Latency distribution for full snapshot fetches.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			metricsRegistry.fetches,
			metricsRegistry.cacheLookups,
			metricsRegistry.staleDiscards,
			metricsRegistry.fetchLatency,
		)
	})
	return metricsRegistry
}

func (m *storeMetrics) observeFetch(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchLatency.Observe(time.Since(start).Seconds())
}

func (m *storeMetrics) observeLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *storeMetrics) observeStaleDiscard() {
	if m == nil {
		return
	}
	m.staleDiscards.Inc()
}
