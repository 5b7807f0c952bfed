package sched

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSched holds Prometheus metrics for the parallel scheduler's
// introspection surface (spec.md §4.9 "Parallelism statistics").
type metricsSched struct {
	once sync.Once

	nodesCompleted prometheus.Counter
	nodesFailed    prometheus.Counter
	runsStarted    prometheus.Counter
	maxParallel    prometheus.Histogram
	criticalPath   prometheus.Histogram
}

var schedMetrics metricsSched

func (m *metricsSched) init() {
	m.once.Do(func() {
		m.nodesCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "jake_sched_nodes_completed_total", Help: "Recipe nodes that finished successfully"})
		m.nodesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "jake_sched_nodes_failed_total", Help: "Recipe nodes that finished with an error"})
		m.runsStarted = prometheus.NewCounter(prometheus.CounterOpts{Name: "jake_sched_runs_started_total", Help: "Parallel executor runs started"})
		m.maxParallel = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "jake_sched_max_parallel", Help: "Widest topological level observed per run", Buckets: prometheus.LinearBuckets(1, 1, 10)})
		m.criticalPath = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "jake_sched_critical_path_length", Help: "Critical path length observed per run", Buckets: prometheus.LinearBuckets(1, 1, 10)})

		prometheus.MustRegister(m.nodesCompleted, m.nodesFailed, m.runsStarted, m.maxParallel, m.criticalPath)
	})
}

func recordNodeCompleted() { schedMetrics.init(); schedMetrics.nodesCompleted.Inc() }
func recordNodeFailed()    { schedMetrics.init(); schedMetrics.nodesFailed.Inc() }
func recordRunStarted()    { schedMetrics.init(); schedMetrics.runsStarted.Inc() }

func recordStats(stats Stats) {
	schedMetrics.init()
	schedMetrics.maxParallel.Observe(float64(stats.MaxParallel))
	schedMetrics.criticalPath.Observe(float64(stats.CriticalPathLength))
}
