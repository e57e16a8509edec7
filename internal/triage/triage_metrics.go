package triage

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal     *prometheus.CounterVec
	TriageDuration   *prometheus.HistogramVec
	ESITotal         *prometheus.CounterVec
	SpecialtyTotal   *prometheus.CounterVec
	SummaryDuration  prometheus.Histogram
	SummaryFallbacks prometheus.Counter
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_triages_total",
			Help: "Total triage runs by outcome.",
		}, []string{"status"}),
		TriageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medtriage_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"status"}),
		ESITotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_triage_esi_total",
			Help: "Completed triages by ESI level.",
		}, []string{"esi"}),
		SpecialtyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_triage_specialty_total",
			Help: "Completed triages by specialty and classifier path.",
		}, []string{"specialty", "path"}),
		SummaryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medtriage_summary_duration_seconds",
			Help:    "Duration of summarizer calls in seconds, including fallbacks.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}),
		SummaryFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_summary_fallbacks_total",
			Help: "Summaries replaced by the transcript prefix.",
		}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageDuration,
		m.ESITotal,
		m.SpecialtyTotal,
		m.SummaryDuration,
		m.SummaryFallbacks,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnSummary: func(duration float64, fallback bool) {
			m.SummaryDuration.Observe(duration)
			if fallback {
				m.SummaryFallbacks.Inc()
			}
		},
		OnComplete: func(e *CompleteEvent) {
			status := "success"
			if e.Err != nil {
				status = "error"
			}
			m.TriagesTotal.WithLabelValues(status).Inc()
			m.TriageDuration.WithLabelValues(status).Observe(e.Duration)
			if e.Err != nil {
				return
			}
			m.ESITotal.WithLabelValues(strconv.Itoa(e.ESI)).Inc()
			m.SpecialtyTotal.WithLabelValues(e.Specialty, string(e.Path)).Inc()
		},
	}
}
