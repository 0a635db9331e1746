// Package prometheus exports loader metrics as Prometheus collectors.
package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dredge/internal/core"
)

const namespace = "dredge"

// Recorder implements core.MetricsRecorder.
type Recorder struct {
	// Operations counts observations by operation and result (success, error).
	Operations *prometheus.CounterVec
	// Duration measures operation latency in seconds.
	Duration *prometheus.HistogramVec
}

// NewRecorder registers the collectors with reg (prometheus.DefaultRegisterer
// when nil).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "operations_total",
			Help:      "Comparison loader operations by result.",
		}, []string{"operation", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "operation_duration_seconds",
			Help:      "Comparison loader operation latency.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
	}
}

// Observe implements core.MetricsRecorder.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	if r == nil || operation == "" {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	r.Operations.WithLabelValues(operation, result).Inc()
	r.Duration.WithLabelValues(operation).Observe(d.Seconds())
}

var _ core.MetricsRecorder = (*Recorder)(nil)
