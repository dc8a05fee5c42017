package readiness

import (
	"math"
	"time"

	"n1core/domain/core"
)

// Component names a readiness input
type Component string

const (
	TSBDistance      Component = "tsb_distance"
	EfficiencyTrend  Component = "efficiency_trend_7d"
	CompletionRate   Component = "completion_rate_7d"
	DaysSinceQuality Component = "days_since_quality"
	RecoveryHalfLife Component = "recovery_half_life"
	HRVTrend         Component = "hrv_trend"
	SleepTrend       Component = "sleep_trend"
)

// Components is the fixed scoring order
var Components = []Component{
	TSBDistance, EfficiencyTrend, CompletionRate, DaysSinceQuality, RecoveryHalfLife, HRVTrend, SleepTrend,
}

// ColdStartWeights are hypotheses pending sensitivity analysis, not settled domain truth.
// HRV and sleep carry no population weight; see IndividualWeights.
var ColdStartWeights = map[Component]float64{
	TSBDistance:      0.25,
	EfficiencyTrend:  0.30,
	CompletionRate:   0.20,
	DaysSinceQuality: 0.15,
	RecoveryHalfLife: 0.10,
	HRVTrend:         0.00,
	SleepTrend:       0.00,
}

// IndividualWeights apply to HRV and sleep only once a finding establishes individual significance
var IndividualWeights = map[Component]float64{
	HRVTrend:   0.10,
	SleepTrend: 0.10,
}

// WeightSource records where a component weight came from
type WeightSource string

const (
	WeightCalibrated WeightSource = "calibrated"
	WeightColdStart  WeightSource = "cold_start"
	WeightIndividual WeightSource = "individual_finding"
	WeightExcluded   WeightSource = "excluded"
)

// ComponentScore is one line of the auditable breakdown
type ComponentScore struct {
	Component       Component    `json:"component"`
	Raw             *float64     `json:"raw,omitempty"`
	Normalized      float64      `json:"normalized"`
	BaseWeight      float64      `json:"base_weight"`
	EffectiveWeight float64      `json:"effective_weight"`
	Contribution    float64      `json:"contribution"`
	Available       bool         `json:"available"`
	WeightSource    WeightSource `json:"weight_source"`
	Note            string       `json:"note,omitempty"`
}

// DailyReadiness is one day's composite score
type DailyReadiness struct {
	AthleteID          core.AthleteID   `json:"athlete_id"`
	Date               time.Time        `json:"date"`
	Score              float64          `json:"score"`
	Breakdown          []ComponentScore `json:"component_breakdown"`
	MissingWeightShare float64          `json:"missing_weight_share"`
	ThresholdVersion   int64            `json:"threshold_version"`
	ComputedAt         time.Time        `json:"computed_at"`
}

// RoundingTolerance bounds the gap between Score and the sum of contributions
const RoundingTolerance = 0.05

// Contributions sums the breakdown
func (d *DailyReadiness) Contributions() float64 {
	sum := 0.0
	for _, c := range d.Breakdown {
		sum += c.Contribution
	}
	return sum
}

// Component returns the breakdown entry for a component
func (d *DailyReadiness) Component(c Component) (ComponentScore, bool) {
	for _, cs := range d.Breakdown {
		if cs.Component == c {
			return cs, true
		}
	}
	return ComponentScore{}, false
}

// Consistent checks the score invariants: range and breakdown sum
func (d *DailyReadiness) Consistent() bool {
	if d.Score < 0 || d.Score > 100 || math.IsNaN(d.Score) {
		return false
	}
	return math.Abs(d.Contributions()-d.Score) <= RoundingTolerance
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
