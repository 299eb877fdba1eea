package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMeter exposes viewer measurements as Prometheus metrics.
// Counters and histograms are created lazily per metric name and labeled
// with the name the viewer emits, so embedders only need one registration.
type PrometheusMeter struct {
	mu       sync.Mutex
	counters *prometheus.CounterVec
	observed *prometheus.HistogramVec
}

// NewPrometheusMeter creates a meter registered against reg. A nil registerer
// uses the default registry.
func NewPrometheusMeter(reg prometheus.Registerer) *PrometheusMeter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMeter{
		counters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfviewer_events_total",
				Help: "Total count of viewer events by metric name",
			},
			[]string{"metric"},
		),
		observed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfviewer_observations",
				Help:    "Viewer observations (durations in seconds) by metric name",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
	reg.MustRegister(m.counters, m.observed)
	return m
}

func (m *PrometheusMeter) Count(name string, delta int) {
	if delta <= 0 {
		return
	}
	m.counters.WithLabelValues(name).Add(float64(delta))
}

func (m *PrometheusMeter) Observe(name string, value float64) {
	m.observed.WithLabelValues(name).Observe(value)
}
