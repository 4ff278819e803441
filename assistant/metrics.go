package assistant

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	fallbacks     *prometheus.CounterVec
	queries       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdpl_stage_duration_seconds",
			Help:    "Latency of each pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdpl_stage_fallbacks_total",
			Help: "Stage failures answered with a fail-open default.",
		}, []string{"stage"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdpl_queries_total",
			Help: "Pipeline queries by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.stageDuration, m.fallbacks, m.queries)
	}
	return m
}

func (m *Metrics) observe(stage string, start time.Time) {
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) fallback(stage string) {
	m.fallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) query(outcome string) {
	m.queries.WithLabelValues(outcome).Inc()
}
