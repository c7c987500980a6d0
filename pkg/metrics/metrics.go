// Package metrics exports Prometheus collectors for handler operations and
// executor jobs.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redbco/redb-persistence/pkg/adapter"
)

// Metrics implements persistence.MetricsRecorder and async.Observer.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec   // Operations by name and outcome
	operationDuration *prometheus.HistogramVec // Operation latency by name
	jobQueueWait      prometheus.Histogram     // Time jobs spend queued
	jobRunTime        prometheus.Histogram     // Time jobs spend running
}

// New creates the collectors under namespace and registers them on a fresh
// registry.
func New(namespace string) (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handler",
			Name:      "operations_total",
			Help:      "Total handler operations by outcome",
		}, []string{"operation", "outcome"}),

		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handler",
			Name:      "operation_duration_seconds",
			Help:      "Handler operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		jobQueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "queue_wait_seconds",
			Help:      "Time a job waits before a worker picks it up",
			Buckets:   prometheus.DefBuckets,
		}),

		jobRunTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "job_duration_seconds",
			Help:      "Time a worker spends on a job",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.operationDuration, m.jobQueueWait, m.jobRunTime} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveOperation records one handler operation.
func (m *Metrics) ObserveOperation(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveJob records one executor job.
func (m *Metrics) ObserveJob(queueWait, runTime time.Duration) {
	if m == nil {
		return
	}
	m.jobQueueWait.Observe(queueWait.Seconds())
	m.jobRunTime.Observe(runTime.Seconds())
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case adapter.IsNotFound(err):
		return "not_found"
	case errors.Is(err, adapter.ErrStaleVersion):
		return "stale"
	default:
		return "error"
	}
}
