package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stages, as used in metric labels and log events.
const (
	StageValidate = "validate"
	StageExtract  = "extract"
	StageParse    = "parse"
	StageScore    = "score"
	StagePersist  = "persist"
)

// Metrics holds the Prometheus collectors for contract processing.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	Processed     *prometheus.CounterVec
	OverallScore  prometheus.Histogram
	ParseMethod   *prometheus.CounterVec
	InFlight      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contracts_stage_duration_seconds",
				Help:    "Duration of each processing stage in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage", "result"},
		),
		Processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contracts_processed_total",
				Help: "Contracts processed, by final result",
			},
			[]string{"result"},
		),
		OverallScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contracts_overall_score",
				Help:    "Overall completeness score of processed contracts",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		ParseMethod: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contracts_parse_method_total",
				Help: "Records produced, by parse method (llm or fallback)",
			},
			[]string{"method"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contracts_in_flight",
				Help: "Contracts currently being processed",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.StageDuration, m.Processed, m.OverallScore, m.ParseMethod, m.InFlight)
	}
	return m
}

func (m *Metrics) observeStage(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, result(err)).Observe(time.Since(start).Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
