// Package readiness computes the daily composite readiness score with a full,
// auditable component breakdown.
package readiness

import (
	"fmt"
	"math"
	"time"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/readiness"
	"n1core/domain/signal"
	"n1core/internal"
	"n1core/internal/stats"
)

const (
	trendWindowDays     = 7
	minTrendDays        = 4
	qualityLookbackDays = 28
	tsbScale            = 30.0
	trendGain           = 5.0
	halfLifeBest        = 24.0
	halfLifeWorst       = 72.0
	qualityRecoveryDays = 3.0
)

// individualInputs maps the finding-gated components to the inputs whose findings unlock them
var individualInputs = map[readiness.Component][]signal.Name{
	readiness.HRVTrend:   {signal.HRV},
	readiness.SleepTrend: {signal.SleepHours, signal.SleepQuality},
}

// Inputs is everything one score needs. Findings holds the athlete's active findings by
// input signal; only they can give HRV and sleep a non-zero weight.
type Inputs struct {
	AthleteID core.AthleteID
	Date      time.Time
	Table     *signal.Table
	Snapshot  *calibration.Snapshot
	Findings  map[signal.Name]*correlation.Finding
}

// Scorer turns aligned signals into a DailyReadiness
type Scorer struct {
	clock  core.Clock
	logger *internal.Logger
}

// NewScorer creates a readiness scorer
func NewScorer(clock core.Clock, logger *internal.Logger) *Scorer {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Scorer{clock: clock, logger: logger.Or()}
}

type measurement struct {
	raw  *float64
	norm float64
	ok   bool
	note string
}

// Score computes the readiness for in.Date. Weights of unavailable components are
// redistributed over the available ones in proportion to their base weights. It returns
// core.ErrInsufficientData when no weighted component is available.
func (s *Scorer) Score(in Inputs) (*readiness.DailyReadiness, error) {
	if in.Table == nil {
		return nil, fmt.Errorf("%w: no signal table", core.ErrInsufficientData)
	}
	day := core.DateOf(in.Date)

	breakdown := make([]readiness.ComponentScore, 0, len(readiness.Components))
	totalBase, availableBase := 0.0, 0.0
	for _, c := range readiness.Components {
		weight, source, note := s.baseWeight(c, in)
		m := s.measure(c, in.Table, day, in.Snapshot)
		cs := readiness.ComponentScore{
			Component:    c,
			Raw:          m.raw,
			Normalized:   m.norm,
			BaseWeight:   weight,
			Available:    m.ok,
			WeightSource: source,
			Note:         joinNotes(note, m.note),
		}
		totalBase += weight
		if m.ok {
			availableBase += weight
		}
		breakdown = append(breakdown, cs)
	}

	if availableBase <= 0 {
		return nil, fmt.Errorf("%w: no readiness component available on %s", core.ErrInsufficientData, core.DateKey(day))
	}

	score := 0.0
	for i := range breakdown {
		cs := &breakdown[i]
		if !cs.Available || cs.BaseWeight == 0 {
			continue
		}
		cs.EffectiveWeight = cs.BaseWeight / availableBase
		cs.Contribution = 100 * cs.Normalized * cs.EffectiveWeight
		score += cs.Contribution
	}

	missing := 0.0
	if totalBase > 0 {
		missing = (totalBase - availableBase) / totalBase
	}

	out := &readiness.DailyReadiness{
		AthleteID:          in.AthleteID,
		Date:               day,
		Score:              readiness.Round1(math.Max(0, math.Min(100, score))),
		Breakdown:          breakdown,
		MissingWeightShare: missing,
		ComputedAt:         s.clock.Now(),
	}
	if in.Snapshot != nil {
		out.ThresholdVersion = in.Snapshot.Version
	}
	s.logger.Trace("readiness %s %s: score=%.1f missing=%.2f", in.AthleteID, core.DateKey(day), out.Score, missing)
	return out, nil
}

func (s *Scorer) baseWeight(c readiness.Component, in Inputs) (float64, readiness.WeightSource, string) {
	name := calibration.WeightName(c)
	if inputs, gated := individualInputs[c]; gated {
		var f *correlation.Finding
		for _, n := range inputs {
			if cand, ok := in.Findings[n]; ok && cand != nil && (f == nil || cand.Confidence > f.Confidence) {
				f = cand
			}
		}
		if f == nil {
			return 0, readiness.WeightExcluded, "no individual finding"
		}
		w, ok := in.Snapshot.Lookup(name)
		if !ok || w <= 0 {
			w = readiness.IndividualWeights[c]
		}
		return w, readiness.WeightIndividual, "finding " + f.Key.String()
	}
	if w, ok := in.Snapshot.Lookup(name); ok {
		return w, readiness.WeightCalibrated, ""
	}
	return readiness.ColdStartWeights[c], readiness.WeightColdStart, ""
}

func (s *Scorer) measure(c readiness.Component, t *signal.Table, day time.Time, snap *calibration.Snapshot) measurement {
	switch c {
	case readiness.TSBDistance:
		v, ok := valueOn(t, signal.TSB, day)
		if !ok {
			return measurement{note: "no tsb on date"}
		}
		target := snap.Value(calibration.TSBTarget)
		return measurement{raw: &v, norm: 1 - math.Min(1, math.Abs(v-target)/tsbScale), ok: true}

	case readiness.EfficiencyTrend:
		return trend(t, signal.EfficiencyFactor, day)

	case readiness.CompletionRate:
		xs, _ := window(t, signal.WorkoutCompletion, day, trendWindowDays)
		if len(xs) == 0 {
			return measurement{note: "no completion data in 7 days"}
		}
		rate := stats.Mean(xs)
		return measurement{raw: &rate, norm: clamp01(rate), ok: true}

	case readiness.DaysSinceQuality:
		return daysSinceQuality(t, day)

	case readiness.RecoveryHalfLife:
		h, ok := valueOn(t, signal.RecoveryHalfLife, day)
		if !ok {
			return measurement{note: "no recovery half-life on date"}
		}
		return measurement{raw: &h, norm: clamp01((halfLifeWorst - h) / (halfLifeWorst - halfLifeBest)), ok: true}

	case readiness.HRVTrend:
		return trend(t, signal.HRV, day)

	case readiness.SleepTrend:
		return trend(t, signal.SleepHours, day)
	}
	return measurement{note: "unknown component"}
}

// trend is the 7-day least-squares slope expressed as relative change over the window
func trend(t *signal.Table, n signal.Name, day time.Time) measurement {
	xs, days := window(t, n, day, trendWindowDays)
	if len(xs) < minTrendDays {
		return measurement{note: fmt.Sprintf("%d of %d days observed", len(xs), minTrendDays)}
	}
	mean := stats.Mean(xs)
	if mean == 0 {
		return measurement{note: "zero mean"}
	}
	pos := make([]float64, len(days))
	for i, d := range days {
		pos[i] = float64(d)
	}
	slope, ok := stats.Slope(pos, xs)
	if !ok {
		return measurement{note: "degenerate window"}
	}
	rel := slope * float64(trendWindowDays-1) / math.Abs(mean)
	return measurement{raw: &rel, norm: clamp01(0.5 + trendGain*rel), ok: true}
}

func daysSinceQuality(t *signal.Table, day time.Time) measurement {
	s, ok := t.Get(signal.QualitySession)
	if !ok {
		return measurement{note: "no quality session data"}
	}
	seen := false
	for d := 0; d <= qualityLookbackDays; d++ {
		v, ok := s.At(core.AddDays(day, -d))
		if !ok {
			continue
		}
		seen = true
		if v >= 0.5 {
			days := float64(d)
			return measurement{raw: &days, norm: math.Min(1, days/qualityRecoveryDays), ok: true}
		}
	}
	if !seen {
		return measurement{note: "no quality session data in 28 days"}
	}
	days := float64(qualityLookbackDays)
	return measurement{raw: &days, norm: 1, ok: true, note: "no quality session in 28 days"}
}

func valueOn(t *signal.Table, n signal.Name, day time.Time) (float64, bool) {
	s, ok := t.Get(n)
	if !ok {
		return 0, false
	}
	return s.At(day)
}

func window(t *signal.Table, n signal.Name, day time.Time, days int) ([]float64, []int) {
	s, ok := t.Get(n)
	if !ok {
		return nil, nil
	}
	return s.Window(core.AddDays(day, -(days-1)), day)
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

func joinNotes(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "; " + b
}
