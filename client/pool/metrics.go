package pool

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors describing a pool.
// A nil *Metrics records nothing.
type Metrics struct {
	Queued    prometheus.Gauge
	Active    prometheus.Gauge
	Completed prometheus.Counter
	Panicked  prometheus.Counter
	Rejected  prometheus.Counter
}

// NewMetrics creates the pool collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		Queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_queued",
			Help:      "Tasks waiting for a worker",
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_active",
			Help:      "Tasks currently running",
		}),
		Completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_completed_total",
			Help:      "Tasks that ran to completion",
		}),
		Panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_panicked_total",
			Help:      "Tasks that panicked and were recovered",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_rejected_total",
			Help:      "Submissions refused because the queue was full",
		}),
	}

	for _, c := range []prometheus.Collector{m.Queued, m.Active, m.Completed, m.Panicked, m.Rejected} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering pool metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) queued() {
	if m == nil {
		return
	}
	m.Queued.Inc()
}

func (m *Metrics) rejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.Queued.Dec()
	m.Active.Inc()
}

func (m *Metrics) finished(panicked bool) {
	if m == nil {
		return
	}
	m.Active.Dec()
	if panicked {
		m.Panicked.Inc()
		return
	}
	m.Completed.Inc()
}
