package formio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by Io.
type Metrics struct {
	changes  prometheus.Counter
	failures *prometheus.CounterVec
	paused   prometheus.Counter
	rebuilds prometheus.Counter
	watched  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		changes: f.NewCounter(prometheus.CounterOpts{
			Name: "formio_changes_total",
			Help: "Observed leaf changes",
		}),
		// rule paths are the label values, so cardinality is bounded by the rule map
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "formio_validation_failures_total",
			Help: "Failing fields by wildcard rule path",
		}, []string{"rule_path"}),
		paused: f.NewCounter(prometheus.CounterOpts{
			Name: "formio_paused_total",
			Help: "Paused events emitted",
		}),
		rebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "formio_watch_rebuilds_total",
			Help: "Full watcher rebuilds",
		}),
		watched: f.NewGauge(prometheus.GaugeOpts{
			Name: "formio_watched_paths",
			Help: "Leaf paths currently watched",
		}),
	}
}

func (m *Metrics) observeChange(failing []string) {
	if m == nil {
		return
	}
	m.changes.Inc()
	for _, p := range failing {
		m.failures.WithLabelValues(ToWildcardPath(p)).Inc()
	}
}

func (m *Metrics) observePaused() {
	if m == nil {
		return
	}
	m.paused.Inc()
}

func (m *Metrics) observeRebuild(n, watched int) {
	if m == nil {
		return
	}
	m.rebuilds.Add(float64(n))
	m.watched.Set(float64(watched))
}
