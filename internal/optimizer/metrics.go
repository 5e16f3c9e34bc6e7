package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the scheduler's Prometheus instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	Jobs        *prometheus.CounterVec
	JobDuration prometheus.Histogram
	InFlight    prometheus.Gauge
}

// NewMetrics creates the instruments and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simtrader_optimizer_jobs_total",
				Help: "Optimizer jobs by final state",
			},
			[]string{"status"},
		),
		JobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "simtrader_optimizer_job_duration_seconds",
				Help:    "Wall time of a single backtest job in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "simtrader_optimizer_jobs_in_flight",
				Help: "Jobs currently running",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Jobs, m.JobDuration, m.InFlight)
	}
	return m
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *Metrics) finished(state JobState, d time.Duration) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.Jobs.WithLabelValues(state.String()).Inc()
	m.JobDuration.Observe(d.Seconds())
}

func (m *Metrics) cancelled() {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(JobCancelled.String()).Inc()
}
