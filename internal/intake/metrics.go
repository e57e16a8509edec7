package intake

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the intake pipeline.
type Metrics struct {
	Utterances    prometheus.Counter
	PartialTurns  prometheus.Counter
	CaptureErrors prometheus.Counter
	Encounters    *prometheus.CounterVec
	Flushes       *prometheus.CounterVec
}

// NewMetrics registers and returns intake metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Utterances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_intake_utterances_total",
			Help: "Finalized utterances buffered.",
		}),
		PartialTurns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_intake_partial_turns_total",
			Help: "Non-final turns seen and not buffered.",
		}),
		CaptureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_intake_capture_errors_total",
			Help: "Error events reported by the capture source.",
		}),
		Encounters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_intake_encounters_total",
			Help: "Encounters bound to capture sessions by source.",
		}, []string{"source"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_intake_flushes_total",
			Help: "Transcript flushes by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.Utterances,
		m.PartialTurns,
		m.CaptureErrors,
		m.Encounters,
		m.Flushes,
	)

	return m
}

// Hooks returns aggregator Hooks that increment the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnUtterance:   m.Utterances.Inc,
		OnPartialTurn: m.PartialTurns.Inc,
		OnCaptureErr:  m.CaptureErrors.Inc,
		OnEncounter: func(fallback bool) {
			source := "created"
			if fallback {
				source = "fallback"
			}
			m.Encounters.WithLabelValues(source).Inc()
		},
		OnFlush: func(err error) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			m.Flushes.WithLabelValues(outcome).Inc()
		},
	}
}
