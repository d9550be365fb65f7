package graph

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts graph activity. A nil *Metrics is valid and counts nothing.
type Metrics struct {
	evaluations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	cacheHits   prometheus.Counter
	badShapes   prometheus.Counter
}

// NewMetrics creates the graph metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "graph",
			Name:      "evaluations_total",
			Help:      "Number of blocks computed, by node class.",
		}, []string{"class"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "graph",
			Name:      "failures_total",
			Help:      "Number of failed block computations, by node class.",
		}, []string{"class"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "graph",
			Name:      "cache_hits_total",
			Help:      "Number of requests served from a fan-out cache.",
		}),
		badShapes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signals",
			Subsystem: "graph",
			Name:      "bad_shapes_total",
			Help:      "Number of blocks rejected because of their shape.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.evaluations, m.failures, m.cacheHits, m.badShapes)
	}
	return m
}

func (m *Metrics) evaluated(class string) {
	if m != nil {
		m.evaluations.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) failed(class string) {
	if m != nil {
		m.failures.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) badShape() {
	if m != nil {
		m.badShapes.Inc()
	}
}

// CacheHits is the counter of requests served from fan-out caches.
func (m *Metrics) CacheHits() prometheus.Counter { return m.cacheHits }
