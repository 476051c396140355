package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dvbench"

const (
	labelScenario = "scenario"
	labelStatus   = "status"
	labelStage    = "stage"
	labelResult   = "result"
)

// Metrics describes a run. They are exported as a node_exporter textfile.
type Metrics struct {
	// Scenarios counts finished scenarios by outcome
	Scenarios *prometheus.CounterVec

	// ScenarioSeconds is the wall time of the last run of each scenario
	ScenarioSeconds *prometheus.GaugeVec

	// ConvergenceSeconds is the time routing took to converge in each stage of a scenario
	ConvergenceSeconds *prometheus.GaugeVec

	// Fetches counts data-plane fetches by result
	Fetches *prometheus.CounterVec
}

// NewMetrics registers the run metrics against reg, or a private registry if reg is nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Scenarios run, by outcome.",
		}, []string{labelScenario, labelStatus}),

		ScenarioSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_seconds",
			Help:      "Duration of the last run of a scenario.",
		}, []string{labelScenario}),

		ConvergenceSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "convergence_seconds",
			Help:      "Time until routing converged, rounded to seconds.",
		}, []string{labelScenario, labelStage}),

		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Data-plane fetches, by result.",
		}, []string{labelScenario, labelResult}),
	}
	reg.MustRegister(
		m.Scenarios,
		m.ScenarioSeconds,
		m.ConvergenceSeconds,
		m.Fetches,
	)
	return m
}
