package commands

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the per-command counters of the commands endpoint.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	batch    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbiter_desk",
			Subsystem: "commands",
			Name:      "requests_total",
			Help:      "Commands handled, by command and outcome code.",
		}, []string{"command", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbiter_desk",
			Subsystem: "commands",
			Name:      "duration_seconds",
			Help:      "Command handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbiter_desk",
			Subsystem: "commands",
			Name:      "batch_size",
			Help:      "Number of updates per batch_update_results call.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250, 500},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.batch)
	}
	return m
}
