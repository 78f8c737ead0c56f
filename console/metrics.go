package console

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "fidebe"
	metricsSubsystem = "console"
)

// metrics is the optional instrumentation of a recorder, nil value records nothing.
type metrics struct {
	reg prometheus.Registerer

	entries  *prometheus.CounterVec
	evicted  prometheus.Counter
	failures prometheus.Counter
	buffered prometheus.Gauge
	capacity prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, capacity int) (*metrics, error) {
	m := &metrics{
		reg: reg,
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "entries_total",
			Help:      "Total number of recorded console entries.",
		}, []string{"level"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "evicted_total",
			Help:      "Total number of entries evicted from the full buffer.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "record_failures_total",
			Help:      "Total number of logging calls that could not be recorded.",
		}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "buffered_entries",
			Help:      "Number of entries currently kept in the buffer.",
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "capacity_entries",
			Help:      "Maximum number of entries kept in the buffer.",
		}),
	}

	collectors := m.collectors()
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, registered := range collectors[:i] {
				reg.Unregister(registered)
			}
			return nil, err
		}
	}

	for _, l := range Levels {
		m.entries.WithLabelValues(string(l))
	}
	m.capacity.Set(float64(capacity))
	return m, nil
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.entries, m.evicted, m.failures, m.buffered, m.capacity}
}

func (m *metrics) recorded(level Level, evicted bool, buffered int) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(string(level)).Inc()
	if evicted {
		m.evicted.Inc()
	}
	m.buffered.Set(float64(buffered))
}

func (m *metrics) setBuffered(n int) {
	if m == nil {
		return
	}
	m.buffered.Set(float64(n))
}

func (m *metrics) failed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

func (m *metrics) unregister() {
	if m == nil {
		return
	}
	for _, c := range m.collectors() {
		m.reg.Unregister(c)
	}
}
