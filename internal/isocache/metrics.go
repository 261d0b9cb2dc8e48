package isocache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters shared by every cache of a process. Each cache
// reports under its own "cache" label.
type Metrics struct {
	Lookups   *prometheus.CounterVec
	Inserts   *prometheus.CounterVec
	Evictions *prometheus.CounterVec
	Entries   *prometheus.GaugeVec
}

const (
	LabelHit      = "hit"
	LabelMiss     = "miss"
	LabelStored   = "stored"
	LabelRaceLost = "race_lost"

	ReasonIdle     = "idle"
	ReasonCapacity = "capacity"
	ReasonPurge    = "purge"
)

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	const (
		namespace = "staged"
		subsystem = "isocache"
	)

	return &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lookups_total",
			Help:      "Count of cache lookups by outcome",
		}, []string{"cache", "result"}),

		Inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inserts_total",
			Help:      "Count of insert-if-absent calls by outcome",
		}, []string{"cache", "result"}),

		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evictions_total",
			Help:      "Count of entries dropped from the cache",
		}, []string{"cache", "reason"}),

		Entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entries",
			Help:      "Number of live entries",
		}, []string{"cache"}),
	}
}

// PrometheusCollectors returns the collectors for registration.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Lookups,
		m.Inserts,
		m.Evictions,
		m.Entries,
	}
}
