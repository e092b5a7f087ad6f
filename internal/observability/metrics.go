package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the kernel's Prometheus collectors and implements Observer
// so it can be registered with a Manager alongside LogObserver and Hub.
type Metrics struct {
	agentsSpawned   prometheus.Counter
	agentsCompleted prometheus.Counter
	agentsFailed    prometheus.Counter
	graphsCompleted prometheus.Counter
	graphsFailed    prometheus.Counter
	nodeDuration    prometheus.Histogram
}

// NewMetrics constructs and registers the kernel's metric collectors against
// reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		agentsSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "agents_spawned_total",
			Help:      "Total number of agents spawned.",
		}),
		agentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "agents_completed_total",
			Help:      "Total number of agents that completed successfully.",
		}),
		agentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "agents_failed_total",
			Help:      "Total number of agents that terminated in failure.",
		}),
		graphsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "workflow_graphs_completed_total",
			Help:      "Total number of workflow graphs that completed successfully.",
		}),
		graphsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "workflow_graphs_failed_total",
			Help:      "Total number of workflow graphs that failed.",
		}),
		nodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kernel",
			Name:      "workflow_node_duration_seconds",
			Help:      "Duration of individual workflow node executions.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.agentsSpawned,
		m.agentsCompleted,
		m.agentsFailed,
		m.graphsCompleted,
		m.graphsFailed,
		m.nodeDuration,
	)
	return m
}

// Notify updates counters/histograms based on event.Type.
func (m *Metrics) Notify(event Event) {
	switch event.Type {
	case EventAgentSpawned:
		m.agentsSpawned.Inc()
	case EventAgentCompleted:
		m.agentsCompleted.Inc()
	case EventAgentFailed:
		m.agentsFailed.Inc()
	case EventGraphCompleted:
		m.graphsCompleted.Inc()
	case EventGraphFailed:
		m.graphsFailed.Inc()
	case EventNodeCompleted, EventNodeFailed:
		if event.Duration > 0 {
			m.nodeDuration.Observe(event.Duration.Seconds())
		}
	}
}

var _ Observer = (*Metrics)(nil)
