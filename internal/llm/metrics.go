package llm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exports attempt outcomes and latencies.
type PrometheusObserver struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusObserver registers the attempt collectors with reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airouter_attempts_total",
				Help: "Dispatch attempts by provider and outcome (success, timeout, transport, cancelled).",
			},
			[]string{"provider", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "airouter_attempt_duration_seconds",
				Help:    "Wall time of dispatch attempts, including abandoned ones.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"provider"},
		),
	}
	for _, c := range []prometheus.Collector{o.attempts, o.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ObserveAttempt implements AttemptObserver.
func (o *PrometheusObserver) ObserveAttempt(a Attempt) {
	outcome := "success"
	if !a.Success {
		outcome = string(a.Reason)
	}
	o.attempts.WithLabelValues(a.Provider, outcome).Inc()
	o.duration.WithLabelValues(a.Provider).Observe(a.Elapsed.Seconds())
}
