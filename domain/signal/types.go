package signal

import (
	"math"
	"time"

	"n1core/domain/core"
)

// Name identifies an input signal or output metric
type Name string

// Input signals captured by daily check-in, wearables and training-load computation
const (
	SleepHours       Name = "sleep_hours"
	SleepQuality     Name = "sleep_quality"
	Stress           Name = "stress"
	Soreness         Name = "soreness"
	Motivation       Name = "motivation"
	HRV              Name = "hrv_rmssd"
	RestingHR        Name = "resting_hr"
	TSB              Name = "tsb"
	CTL              Name = "ctl"
	ATL              Name = "atl"
	RecoveryHalfLife Name = "recovery_half_life_h"
	QualitySession   Name = "quality_session"
)

// Output metrics produced by activity ingestion
const (
	PaceAtFixedHR     Name = "pace_at_fixed_hr"
	EfficiencyFactor  Name = "efficiency_factor"
	WorkoutCompletion Name = "workout_completion"
	CardiacDrift      Name = "cardiac_drift_pct"
)

// Kind separates inputs from outputs
type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// RegisteredInputs lists every input signal the aggregator builds
var RegisteredInputs = []Name{
	SleepHours, SleepQuality, Stress, Soreness, Motivation,
	HRV, RestingHR, TSB, CTL, ATL, RecoveryHalfLife, QualitySession,
}

// RegisteredOutputs lists every output metric the aggregator builds
var RegisteredOutputs = []Name{
	PaceAtFixedHR, EfficiencyFactor, WorkoutCompletion, CardiacDrift,
}

// CorrelationInputs is the input side of the correlation scope
var CorrelationInputs = []Name{
	SleepHours, SleepQuality, Stress, Soreness, Motivation, HRV, RestingHR, TSB,
}

// CorrelationOutputs is the output side of the correlation scope
var CorrelationOutputs = []Name{
	PaceAtFixedHR, EfficiencyFactor, WorkoutCompletion,
}

// KindOf reports whether a name is a registered input or output
func KindOf(n Name) (Kind, bool) {
	for _, in := range RegisteredInputs {
		if in == n {
			return KindInput, true
		}
	}
	for _, out := range RegisteredOutputs {
		if out == n {
			return KindOutput, true
		}
	}
	return "", false
}

// InputSample is one day's value of one input signal. Value is nil for a missing day.
type InputSample struct {
	AthleteID core.AthleteID
	Signal    Name
	Date      time.Time
	Value     *float64
}

// OutputSample is one day's or one activity's value of an output metric
type OutputSample struct {
	AthleteID  core.AthleteID
	Metric     Name
	Date       time.Time
	ActivityID core.ActivityID
	Value      *float64
}

// Float returns a pointer to v, for building samples
func Float(v float64) *float64 { return &v }

// Series is a dense, date-indexed series. Missing days hold NaN; nothing is filled.
type Series struct {
	Name   Name
	Kind   Kind
	Start  time.Time
	Values []float64
}

// Len returns the number of days on the grid
func (s *Series) Len() int { return len(s.Values) }

// DateAt returns the calendar date of index i
func (s *Series) DateAt(i int) time.Time { return core.AddDays(s.Start, i) }

// IndexOf returns the grid index of a date, or -1 when outside the grid
func (s *Series) IndexOf(d time.Time) int {
	i := core.DaysBetween(s.Start, d)
	if i < 0 || i >= len(s.Values) {
		return -1
	}
	return i
}

// At returns the value on a date and whether it is present
func (s *Series) At(d time.Time) (float64, bool) {
	i := s.IndexOf(d)
	if i < 0 || math.IsNaN(s.Values[i]) {
		return 0, false
	}
	return s.Values[i], true
}

// NonNullCount counts observed days
func (s *Series) NonNullCount() int {
	n := 0
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Window returns the observed values in the inclusive date range [from, to]
func (s *Series) Window(from, to time.Time) (xs []float64, days []int) {
	for i, v := range s.Values {
		d := s.DateAt(i)
		if d.Before(core.DateOf(from)) || d.After(core.DateOf(to)) || math.IsNaN(v) {
			continue
		}
		xs = append(xs, v)
		days = append(days, core.DaysBetween(from, d))
	}
	return xs, days
}

// Table holds one athlete's aligned series for a date range
type Table struct {
	AthleteID core.AthleteID
	From      time.Time
	To        time.Time
	Series    map[Name]*Series
}

// Days returns the length of the shared day grid
func (t *Table) Days() int { return core.DaysBetween(t.From, t.To) + 1 }

// Get returns a series by name
func (t *Table) Get(n Name) (*Series, bool) {
	s, ok := t.Series[n]
	return s, ok
}

// Require returns the series when it has at least minDays observed days.
// Callers must treat ErrInsufficientHistory as "no result", never as zero.
func (t *Table) Require(n Name, minDays int) (*Series, error) {
	s, ok := t.Series[n]
	if !ok {
		return nil, core.NewInsufficientHistoryError(string(n), 0, minDays)
	}
	if have := s.NonNullCount(); have < minDays {
		return nil, core.NewInsufficientHistoryError(string(n), have, minDays)
	}
	return s, nil
}

// Polarity is the externally registered "which way is better" of an output metric
type Polarity string

const (
	PolarityUnknown      Polarity = ""
	PolarityHigherBetter Polarity = "higher_is_better"
	PolarityLowerBetter  Polarity = "lower_is_better"
	PolarityAmbiguous    Polarity = "ambiguous"
)

// Directional reports whether evaluative wording may be used for the metric
func (p Polarity) Directional() bool {
	return p == PolarityHigherBetter || p == PolarityLowerBetter
}
