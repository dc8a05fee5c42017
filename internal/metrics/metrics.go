// Package metrics holds the Prometheus instruments for the daily pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all pipeline metrics. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	// Stage timing
	StageDuration *prometheus.HistogramVec

	// Batch outcomes
	AthleteRuns *prometheus.CounterVec

	// Correlation persistence
	FindingsWritten *prometheus.CounterVec

	// Rule engine
	RuleResults *prometheus.CounterVec
	Insights    *prometheus.CounterVec

	// Calibration and feedback
	ThresholdUpdates *prometheus.CounterVec
	SelfRegRecords   *prometheus.CounterVec
}

// NewRegistry creates and registers every metric on a private registry
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "n1core_stage_duration_seconds",
				Help:    "Duration of each per-athlete pipeline stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"stage", "result"},
		),

		AthleteRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "n1core_athlete_runs_total",
				Help: "Per-athlete pipeline runs by outcome (ok, failed, timeout, locked)",
			},
			[]string{"outcome"},
		),

		FindingsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "n1core_findings_written_total",
				Help: "Correlation finding writes by action (created, confirmed, deactivated, unchanged)",
			},
			[]string{"action"},
		),

		RuleResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "n1core_rule_results_total",
				Help: "Rule evaluations by rule and status",
			},
			[]string{"rule", "status"},
		),

		Insights: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "n1core_insights_emitted_total",
				Help: "Insights persisted by rule and mode",
			},
			[]string{"rule", "mode"},
		),

		ThresholdUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "n1core_threshold_updates_total",
				Help: "Calibration decisions by result (updated, below_floor, retained)",
			},
			[]string{"result"},
		),

		SelfRegRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "n1core_selfreg_records_total",
				Help: "Self-regulation log transitions by status (logged, resolved, expired)",
			},
			[]string{"status"},
		),
	}

	r.reg.MustRegister(
		r.StageDuration,
		r.AthleteRuns,
		r.FindingsWritten,
		r.RuleResults,
		r.Insights,
		r.ThresholdUpdates,
		r.SelfRegRecords,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveStage records how long a stage took
func (r *Registry) ObserveStage(stage string, started time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.StageDuration.WithLabelValues(stage, result).Observe(time.Since(started).Seconds())
}

// AthleteRun counts one athlete's batch outcome
func (r *Registry) AthleteRun(outcome string) {
	if r == nil {
		return
	}
	r.AthleteRuns.WithLabelValues(outcome).Inc()
}

// FindingWrite counts finding store actions
func (r *Registry) FindingWrite(action string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.FindingsWritten.WithLabelValues(action).Add(float64(n))
}

// RuleResult counts one rule evaluation
func (r *Registry) RuleResult(rule, status string) {
	if r == nil {
		return
	}
	r.RuleResults.WithLabelValues(rule, status).Inc()
}

// InsightEmitted counts one persisted insight
func (r *Registry) InsightEmitted(rule, mode string) {
	if r == nil {
		return
	}
	r.Insights.WithLabelValues(rule, mode).Inc()
}

// ThresholdUpdate counts one calibration decision
func (r *Registry) ThresholdUpdate(result string) {
	if r == nil {
		return
	}
	r.ThresholdUpdates.WithLabelValues(result).Inc()
}

// SelfReg counts self-regulation log transitions
func (r *Registry) SelfReg(status string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.SelfRegRecords.WithLabelValues(status).Add(float64(n))
}
