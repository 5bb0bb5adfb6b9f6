package interpreter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the collectors updated by Optimize. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Steps        prometheus.Counter
	Skipped      prometheus.Counter
	Loss         prometheus.Gauge
	StepDuration prometheus.Histogram
}

// NewMetrics registers the interpreter collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Steps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "interp",
			Name:      "steps_total",
			Help:      "Optimization steps run, skipped ones included",
		}),
		Skipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "interp",
			Name:      "skipped_steps_total",
			Help:      "Steps whose update was skipped because of a non-finite loss or gradient",
		}),
		Loss: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "interp",
			Name:      "loss",
			Help:      "Loss of the most recent finite step",
		}),
		StepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "interp",
			Name:      "step_duration_seconds",
			Help:      "Wall time of one optimization step",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
}

func (m *Metrics) observe(loss, seconds float64, skipped bool) {
	if m == nil {
		return
	}
	m.Steps.Inc()
	m.StepDuration.Observe(seconds)
	if skipped {
		m.Skipped.Inc()
		return
	}
	m.Loss.Set(loss)
}
