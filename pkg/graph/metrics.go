package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes engine health as Prometheus metrics. A nil *Metrics is
// valid and records nothing, so tests can run without a registry.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	nodesInflight prometheus.Gauge
	nodeLatency   *prometheus.HistogramVec
	nodeErrors    *prometheus.CounterVec
}

// NewMetrics registers engine metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revera",
			Subsystem: "graph",
			Name:      "runs_total",
			Help:      "Completed graph runs by outcome.",
		}, []string{"outcome"}),
		nodesInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "revera",
			Subsystem: "graph",
			Name:      "nodes_inflight",
			Help:      "Nodes currently executing.",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "revera",
			Subsystem: "graph",
			Name:      "node_duration_seconds",
			Help:      "Node execution latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"node"}),
		nodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revera",
			Subsystem: "graph",
			Name:      "node_errors_total",
			Help:      "Node failures by node name.",
		}, []string{"node"}),
	}
}

func (m *Metrics) runFinished(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) nodeStarted() {
	if m == nil {
		return
	}
	m.nodesInflight.Inc()
}

func (m *Metrics) nodeFinished(node string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.nodesInflight.Dec()
	m.nodeLatency.WithLabelValues(node).Observe(elapsed.Seconds())
	if err != nil {
		m.nodeErrors.WithLabelValues(node).Inc()
	}
}
