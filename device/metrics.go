package device

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts trouble at the device boundary.
type Metrics struct {
	underruns prometheus.Counter
	drops     prometheus.Counter
	failures  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		underruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "device",
			Name:      "underruns_total",
			Help:      "Frames a source could not deliver in time.",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "device",
			Name:      "dropped_blocks_total",
			Help:      "Recorded blocks dropped because the source queue was full.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "device",
			Name:      "failed_blocks_total",
			Help:      "Output blocks replaced with silence because the graph failed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.underruns, m.drops, m.failures)
	}
	return m
}

func (m *Metrics) underrun(frames int) {
	if m != nil {
		m.underruns.Add(float64(frames))
	}
}

func (m *Metrics) drop() {
	if m != nil {
		m.drops.Inc()
	}
}

func (m *Metrics) failure() {
	if m != nil {
		m.failures.Inc()
	}
}
