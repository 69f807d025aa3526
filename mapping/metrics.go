package mapping

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for mapping runs. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	walks          prometheus.Counter
	indexEntries   prometheus.Counter
	statements     *prometheus.CounterVec // By object shape (resource/blank/literal)
	errors         *prometheus.CounterVec // By error type (configuration/sink)
	mapDuration    prometheus.Histogram
	individualsMap prometheus.Counter
}

// NewMetrics creates mapping metrics and registers them with reg. A nil reg
// disables metrics and returns nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		walks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osfipm",
			Subsystem: "mapping",
			Name:      "walks_total",
			Help:      "Total number of completed graph walks",
		}),
		indexEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osfipm",
			Subsystem: "mapping",
			Name:      "index_entries_total",
			Help:      "Total number of entries added to annotated element indexes",
		}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osfipm",
			Subsystem: "mapping",
			Name:      "statements_total",
			Help:      "Total number of emitted statements",
		}, []string{"shape"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osfipm",
			Subsystem: "mapping",
			Name:      "errors_total",
			Help:      "Total number of mapping errors",
		}, []string{"type"}),
		mapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "osfipm",
			Subsystem: "mapping",
			Name:      "map_duration_seconds",
			Help:      "Duration of MapAll runs in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}),
		individualsMap: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osfipm",
			Subsystem: "mapping",
			Name:      "individuals_total",
			Help:      "Total number of individuals projected",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.walks, m.indexEntries, m.statements, m.errors, m.mapDuration, m.individualsMap,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) walked(added int) {
	if m == nil {
		return
	}
	m.walks.Inc()
	m.indexEntries.Add(float64(added))
}

func (m *Metrics) emitted(t Term) {
	if m == nil {
		return
	}
	shape := "resource"
	switch t.Kind {
	case TermBlank:
		shape = "blank"
	case TermLiteral:
		shape = "literal"
	}
	m.statements.WithLabelValues(shape).Inc()
}

func (m *Metrics) failed(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) projected() {
	if m == nil {
		return
	}
	m.individualsMap.Inc()
}

func (m *Metrics) observe(start time.Time) {
	if m == nil {
		return
	}
	m.mapDuration.Observe(time.Since(start).Seconds())
}
