package correlation

import (
	"fmt"
	"math"
	"time"

	"n1core/domain/core"
	"n1core/domain/signal"
)

// MaxLagDays is the largest lag tested between an input and an output
const MaxLagDays = 7

// Key identifies one (input, output, lag) hypothesis for an athlete
type Key struct {
	Input   signal.Name `json:"input"`
	Output  signal.Name `json:"output"`
	LagDays int         `json:"lag_days"`
}

// String renders the key as input->output@lag
func (k Key) String() string {
	return fmt.Sprintf("%s->%s@%d", k.Input, k.Output, k.LagDays)
}

// Pair is the (input, output) part of a key
func (k Key) Pair() Pair { return Pair{Input: k.Input, Output: k.Output} }

// Pair identifies an (input, output) combination across lags
type Pair struct {
	Input  signal.Name
	Output signal.Name
}

// Test is the raw statistic for one hypothesis
type Test struct {
	Key        Key
	N          int
	R          float64
	PValue     float64
	PCorrected float64
}

// Candidate is a combination that passed every gate in one run
type Candidate struct {
	Key        Key     `json:"key"`
	R          float64 `json:"r"`
	PValue     float64 `json:"p_value"`
	PCorrected float64 `json:"p_corrected"`
	N          int     `json:"n"`
}

// BaseConfidence is |r| scaled by how far the corrected p-value is from 1
func (c Candidate) BaseConfidence() float64 {
	return clamp01(math.Abs(c.R) * (1 - c.PCorrected))
}

// Result is the full output of one correlation run for one athlete. FamilySize is the
// Bonferroni m, the number of hypotheses actually computed. Significant holds every key
// that passed all gates, including lags that lost the per-pair tie-break. Tested holds
// every key with enough paired observations to be judged.
type Result struct {
	AthleteID   core.AthleteID
	RunDate     time.Time
	FamilySize  int
	Candidates  []Candidate
	Significant map[Key]bool
	Tested      map[Key]bool
	Skipped     map[signal.Name]string
}

// Finding is a persisted, reproducibility-tracked relationship
type Finding struct {
	ID              core.FindingID `json:"id"`
	AthleteID       core.AthleteID `json:"athlete_id"`
	Key             Key            `json:"key"`
	R               float64        `json:"r"`
	PValue          float64        `json:"p_value"`
	PCorrected      float64        `json:"p_corrected"`
	N               int            `json:"n"`
	BaseConfidence  float64        `json:"base_confidence"`
	Confidence      float64        `json:"confidence"`
	TimesConfirmed  int            `json:"times_confirmed"`
	IsActive        bool           `json:"is_active"`
	FirstDetectedOn time.Time      `json:"first_detected_on"`
	LastConfirmedOn time.Time      `json:"last_confirmed_on"`
	LastRunDate     time.Time      `json:"last_run_date"`
	DeactivatedOn   *time.Time     `json:"deactivated_on,omitempty"`
	LastSurfacedAt  *time.Time     `json:"last_surfaced_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Surfacing rules
const (
	MinConfirmationsToSurface = 3
	SurfaceCooldownDays       = 14
	ConfirmationBoost         = 0.1
)

// Confidence grows with reproducibility and never leaves [0,1]
func Confidence(base float64, timesConfirmed int) float64 {
	if timesConfirmed < 1 {
		timesConfirmed = 1
	}
	return math.Min(1.0, clamp01(base)*(1+ConfirmationBoost*float64(timesConfirmed-1)))
}

// NewFinding creates a first detection with times_confirmed = 1
func NewFinding(athleteID core.AthleteID, c Candidate, runDate time.Time) *Finding {
	day := core.DateOf(runDate)
	base := c.BaseConfidence()
	return &Finding{
		ID:              core.NewFindingID(),
		AthleteID:       athleteID,
		Key:             c.Key,
		R:               c.R,
		PValue:          c.PValue,
		PCorrected:      c.PCorrected,
		N:               c.N,
		BaseConfidence:  base,
		Confidence:      Confidence(base, 1),
		TimesConfirmed:  1,
		IsActive:        true,
		FirstDetectedOn: day,
		LastConfirmedOn: day,
		LastRunDate:     day,
	}
}

// Confirm applies a re-detection from a later run. It returns false when the run date
// was already applied, which makes retried runs no-ops.
func (f *Finding) Confirm(c Candidate, runDate time.Time) bool {
	day := core.DateOf(runDate)
	if !f.LastRunDate.Before(day) {
		return false
	}
	f.TimesConfirmed++
	f.R = c.R
	f.PValue = c.PValue
	f.PCorrected = c.PCorrected
	f.N = c.N
	f.BaseConfidence = c.BaseConfidence()
	f.Confidence = Confidence(f.BaseConfidence, f.TimesConfirmed)
	f.IsActive = true
	f.DeactivatedOn = nil
	f.LastConfirmedOn = day
	f.LastRunDate = day
	return true
}

// Deactivate marks a faded finding inactive without deleting its history
func (f *Finding) Deactivate(runDate time.Time) bool {
	day := core.DateOf(runDate)
	if !f.IsActive || !f.LastRunDate.Before(day) {
		return false
	}
	f.IsActive = false
	f.DeactivatedOn = &day
	f.LastRunDate = day
	return true
}

// SurfacePolicy bounds how often a finding may be shown
type SurfacePolicy struct {
	MinConfirmations int
	CooldownDays     int
}

// DefaultSurfacePolicy returns the package defaults
func DefaultSurfacePolicy() SurfacePolicy {
	return SurfacePolicy{MinConfirmations: MinConfirmationsToSurface, CooldownDays: SurfaceCooldownDays}
}

// Eligible reports whether the finding may be surfaced at now under p
func (f *Finding) Eligible(now time.Time, p SurfacePolicy) bool {
	if !f.IsActive || f.TimesConfirmed < p.MinConfirmations {
		return false
	}
	if f.LastSurfacedAt == nil {
		return true
	}
	return core.DaysBetween(*f.LastSurfacedAt, now) >= p.CooldownDays
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
