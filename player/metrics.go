package player

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts engine activity. A nil *Metrics is valid and counts nothing.
type Metrics struct {
	ticks prometheus.Counter
	jobs  prometheus.Counter
}

// NewMetrics creates the engine metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "player",
			Name:      "ticks_total",
			Help:      "Number of audio callbacks run.",
		}),
		jobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "player",
			Name:      "queued_jobs_total",
			Help:      "Number of jobs queued for the audio thread.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.jobs)
	}
	return m
}

func (m *Metrics) tick() {
	if m != nil {
		m.ticks.Inc()
	}
}

func (m *Metrics) queued() {
	if m != nil {
		m.jobs.Inc()
	}
}

func (m *Metrics) Ticks() prometheus.Counter { return m.ticks }

func (m *Metrics) Jobs() prometheus.Counter { return m.jobs }
