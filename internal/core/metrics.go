package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics exports service metrics through a Prometheus registry.
// It implements MetricsRecorder and StepObserver.
type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	steps      *prometheus.CounterVec
	incomplete *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors with reg. A nil reg uses a
// fresh registry so tests never collide on the default one.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falken",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "falken",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falken",
			Name:      "steps_total",
			Help:      "Recorded episode steps per brain.",
		}, []string{"brain"}),
		incomplete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falken",
			Name:      "incomplete_steps_total",
			Help:      "Steps submitted while some attributes were unset.",
		}, []string{"brain"}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.durations, m.steps, m.incomplete} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveStep implements StepObserver.
func (m *PrometheusMetrics) ObserveStep(_ context.Context, brain string, unsetContainers int) {
	m.steps.WithLabelValues(brain).Inc()
	if unsetContainers > 0 {
		m.incomplete.WithLabelValues(brain).Inc()
	}
}
