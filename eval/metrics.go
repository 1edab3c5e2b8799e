package eval

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics for evaluator
// monitoring in production environments.
//
// Metrics exposed (all namespaced with "skygraph_"):
//
//  1. inflight_tasks (gauge): node-evaluation tasks currently executing.
//  2. queue_depth (gauge): tasks waiting in the scheduler queue.
//  3. node_evaluations_total (counter): completed task attempts.
//     Labels: function, outcome (done/error/suspended/cache_hit).
//  4. restarts_total (counter): inconsistency-triggered restarts.
//     Labels: function.
//  5. task_latency_ms (histogram): task execution duration.
//     Labels: function, outcome.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := eval.NewPrometheusMetrics(registry)
//	ev := eval.New(fnRegistry, nil, emitter, eval.Options{Metrics: metrics})
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe: prometheus collectors handle concurrent updates.
type PrometheusMetrics struct {
	inflightTasks prometheus.Gauge
	queueDepth    prometheus.Gauge

	nodeEvaluations *prometheus.CounterVec
	restarts        *prometheus.CounterVec

	taskLatency *prometheus.HistogramVec

	registry prometheus.Registerer
}

// NewPrometheusMetrics creates and registers all evaluator metrics with
// the provided registry (prometheus.DefaultRegisterer when nil).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{registry: registry}

	pm.inflightTasks = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "skygraph",
		Name:      "inflight_tasks",
		Help:      "Current number of node-evaluation tasks executing concurrently",
	})

	pm.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "skygraph",
		Name:      "queue_depth",
		Help:      "Number of tasks waiting for execution in the scheduler queue",
	})

	pm.nodeEvaluations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skygraph",
		Name:      "node_evaluations_total",
		Help:      "Completed node-evaluation task attempts by outcome",
	}, []string{"function", "outcome"}) // outcome: done, error, suspended, cache_hit

	pm.restarts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skygraph",
		Name:      "restarts_total",
		Help:      "Inconsistency-triggered node restarts",
	}, []string{"function"})

	pm.taskLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skygraph",
		Name:      "task_latency_ms",
		Help:      "Node-evaluation task duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"function", "outcome"})

	return pm
}

// RecordTask records one finished task attempt with its outcome and
// duration.
func (pm *PrometheusMetrics) RecordTask(function, outcome string, latency time.Duration) {
	if pm == nil {
		return
	}
	pm.nodeEvaluations.WithLabelValues(function, outcome).Inc()
	pm.taskLatency.WithLabelValues(function, outcome).Observe(float64(latency.Milliseconds()))
}

// RecordRestart counts an inconsistency-triggered restart for function.
func (pm *PrometheusMetrics) RecordRestart(function string) {
	if pm == nil {
		return
	}
	pm.restarts.WithLabelValues(function).Inc()
}

// UpdateQueueDepth sets the current scheduler queue depth.
func (pm *PrometheusMetrics) UpdateQueueDepth(depth int) {
	if pm == nil {
		return
	}
	pm.queueDepth.Set(float64(depth))
}

// TaskStarted increments the inflight-task gauge.
func (pm *PrometheusMetrics) TaskStarted() {
	if pm == nil {
		return
	}
	pm.inflightTasks.Inc()
}

// TaskFinished decrements the inflight-task gauge.
func (pm *PrometheusMetrics) TaskFinished() {
	if pm == nil {
		return
	}
	pm.inflightTasks.Dec()
}
