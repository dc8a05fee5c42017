package selfreg

import (
	"math"
	"time"

	"n1core/domain/core"
)

// WorkoutDescriptor describes a planned or completed session
type WorkoutDescriptor struct {
	Kind        string  `json:"kind"`
	DurationMin float64 `json:"duration_min"`
	DistanceKm  float64 `json:"distance_km"`
	Intensity   string  `json:"intensity"`
}

// PlanLink is the planned-vs-actual linkage supplied by the plan/workout store
type PlanLink struct {
	AthleteID  core.AthleteID    `json:"athlete_id"`
	Date       time.Time         `json:"date"`
	ActivityID core.ActivityID   `json:"activity_id"`
	Planned    WorkoutDescriptor `json:"planned"`
	Actual     WorkoutDescriptor `json:"actual"`
	Completed  bool              `json:"completed"`
}

// Direction summarizes a deviation
type Direction string

const (
	DirectionReduced   Direction = "reduced"
	DirectionIncreased Direction = "increased"
	DirectionSwapped   Direction = "swapped"
)

// Delta captures how the actual session differed from the plan
type Delta struct {
	DurationPct      *float64  `json:"duration_pct,omitempty"`
	DistancePct      *float64  `json:"distance_pct,omitempty"`
	KindChanged      bool      `json:"kind_changed"`
	IntensityChanged bool      `json:"intensity_changed"`
	Direction        Direction `json:"direction"`
}

// DeviationTolerance is the relative change below which volume differences are noise
const DeviationTolerance = 0.10

// BackfillWindowDays bounds how long an outcome may stay pending
const BackfillWindowDays = 3

// Compare computes the delta between planned and actual. ok is false when the
// session matched the plan within tolerance.
func Compare(planned, actual WorkoutDescriptor) (Delta, bool) {
	var d Delta
	d.DurationPct = pctChange(planned.DurationMin, actual.DurationMin)
	d.DistancePct = pctChange(planned.DistanceKm, actual.DistanceKm)
	d.KindChanged = planned.Kind != "" && actual.Kind != "" && planned.Kind != actual.Kind
	d.IntensityChanged = planned.Intensity != "" && actual.Intensity != "" && planned.Intensity != actual.Intensity

	volume := 0.0
	volumeSeen := false
	for _, p := range []*float64{d.DurationPct, d.DistancePct} {
		if p == nil {
			continue
		}
		if !volumeSeen || math.Abs(*p) > math.Abs(volume) {
			volume = *p
		}
		volumeSeen = true
	}
	volumeDeviated := volumeSeen && math.Abs(volume) > DeviationTolerance

	if !d.KindChanged && !d.IntensityChanged && !volumeDeviated {
		return d, false
	}

	switch {
	case d.KindChanged:
		d.Direction = DirectionSwapped
	case volumeDeviated && volume < 0:
		d.Direction = DirectionReduced
	case volumeDeviated:
		d.Direction = DirectionIncreased
	case intensityRank(actual.Intensity) < intensityRank(planned.Intensity):
		d.Direction = DirectionReduced
	case intensityRank(actual.Intensity) > intensityRank(planned.Intensity):
		d.Direction = DirectionIncreased
	default:
		d.Direction = DirectionSwapped
	}
	return d, true
}

func pctChange(planned, actual float64) *float64 {
	if planned <= 0 {
		return nil
	}
	v := (actual - planned) / planned
	return &v
}

func intensityRank(s string) int {
	switch s {
	case "recovery":
		return 0
	case "easy":
		return 1
	case "moderate", "steady":
		return 2
	case "tempo", "threshold":
		return 3
	case "intervals", "vo2", "race":
		return 4
	}
	return 2
}

// Status tracks the outcome backfill lifecycle
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusExpired  Status = "expired"
)

// Outcome is the next-day effect of a deviation
type Outcome struct {
	EfficiencyDelta *float64 `json:"efficiency_delta,omitempty"`
	Completed       *bool    `json:"completed,omitempty"`
}

// Positive reports whether the deviation was followed by a non-negative result
func (o *Outcome) Positive() bool {
	if o == nil {
		return false
	}
	if o.Completed != nil && !*o.Completed {
		return false
	}
	if o.EfficiencyDelta != nil && *o.EfficiencyDelta < 0 {
		return false
	}
	return o.EfficiencyDelta != nil || o.Completed != nil
}

// Record is one planned-vs-actual deviation
type Record struct {
	ID          core.RecordID     `json:"id"`
	AthleteID   core.AthleteID    `json:"athlete_id"`
	Date        time.Time         `json:"date"`
	ActivityID  core.ActivityID   `json:"activity_id"`
	Planned     WorkoutDescriptor `json:"planned_descriptor"`
	Actual      WorkoutDescriptor `json:"actual_descriptor"`
	Delta       Delta             `json:"delta"`
	Outcome     *Outcome          `json:"outcome,omitempty"`
	Status      Status            `json:"status"`
	FinalizedOn *time.Time        `json:"finalized_on,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Final reports whether the outcome can no longer change
func (r *Record) Final() bool { return r.Status != StatusPending }

// Decision contexts a planned session is classified into for calibration
const (
	ContextQuality = "quality_session"
	ContextLong    = "long_session"
	ContextEasy    = "easy_session"
)

// LongSessionMinutes is the planned duration from which a session counts as long
const LongSessionMinutes = 90

// DecisionContext classifies a planned workout
func (w WorkoutDescriptor) DecisionContext() string {
	switch {
	case intensityRank(w.Intensity) >= 3:
		return ContextQuality
	case w.DurationMin >= LongSessionMinutes:
		return ContextLong
	}
	return ContextEasy
}

// History summarizes resolved deviations in a lookback window
type History struct {
	Resolved int
	Positive int
	Records  []*Record
}

// Sustained is at least three resolved deviations with two thirds of them positive
func (h History) Sustained() bool {
	return h.Resolved >= 3 && 3*h.Positive >= 2*h.Resolved
}
