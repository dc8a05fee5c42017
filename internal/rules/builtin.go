package rules

import (
	"fmt"
	"math"
	"time"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/domain/insight"
	"n1core/domain/readiness"
	"n1core/domain/signal"
	"n1core/internal/stats"
)

// Rule identifiers, in evaluation order
const (
	RuleCorrelationInsight    core.RuleID = "correlation_insight"
	RuleSustainedLowReadiness core.RuleID = "sustained_low_readiness"
	RuleReadinessContext      core.RuleID = "readiness_context"
	RuleEfficiencyTrend       core.RuleID = "efficiency_trend"
	RuleLoadSpike             core.RuleID = "load_spike"
	RuleCardiacDrift          core.RuleID = "cardiac_drift_report"
	RuleSelfRegulation        core.RuleID = "self_regulation_pattern"
)

const (
	efficiencyWindowDays = 14
	efficiencyMinDays    = 7
	efficiencyMinChange  = 0.03
	loadSpikeRatio       = 1.3
	driftLookbackDays    = 7
	selfRegFullCount     = 5
)

// DefaultRules returns the fixed, ordered rule set
func DefaultRules() []Rule {
	return []Rule{
		correlationInsight{},
		sustainedLowReadiness{},
		readinessContext{},
		efficiencyTrend{},
		loadSpike{},
		cardiacDriftReport{},
		selfRegulationPattern{},
	}
}

func notApplicable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrNotApplicable, fmt.Sprintf(format, args...))
}

// readinessGate returns today's score or the reason no readiness-based claim can be made
func readinessGate(c *Context) (*readiness.DailyReadiness, error) {
	r := c.Readiness
	if r == nil {
		return nil, notApplicable("no readiness score for %s", core.DateKey(c.Date))
	}
	if r.MissingWeightShare > c.Run.Analysis.MaxMissingWeight {
		return nil, fmt.Errorf("%w: %.0f%% of readiness weight redistributed", core.ErrSuppressed, 100*r.MissingWeightShare)
	}
	return r, nil
}

func readinessConfidence(r *readiness.DailyReadiness) float64 {
	return 1 - r.MissingWeightShare
}

// ---- correlation_insight ----

type correlationInsight struct{}

func (correlationInsight) ID() core.RuleID       { return RuleCorrelationInsight }
func (correlationInsight) MaxMode() insight.Mode { return insight.ModeInform }

func (correlationInsight) Evaluate(c *Context) (*Evaluation, error) {
	if len(c.Findings) == 0 {
		return nil, notApplicable("no surfacing-eligible finding")
	}
	ev := &Evaluation{}
	for _, f := range c.Findings {
		dir := c.direction(f.Key.Output, f.R)
		key := "correlation.association"
		if dir != insight.DirectionNone {
			key = "correlation.directional"
		}
		ev.Proposals = append(ev.Proposals, Proposal{
			Subject:    f.Key.String(),
			Metric:     f.Key.Output,
			Direction:  dir,
			MessageKey: key,
			Confidence: f.Confidence,
			FindingID:  f.ID,
			Cited: map[string]any{
				"input":           string(f.Key.Input),
				"output":          string(f.Key.Output),
				"lag_days":        f.Key.LagDays,
				"r":               f.R,
				"n":               f.N,
				"p_corrected":     f.PCorrected,
				"times_confirmed": f.TimesConfirmed,
				"finding_id":      f.ID.String(),
			},
		})
	}
	return ev, nil
}

// ---- sustained_low_readiness ----

type sustainedLowReadiness struct{}

func (sustainedLowReadiness) ID() core.RuleID       { return RuleSustainedLowReadiness }
func (sustainedLowReadiness) MaxMode() insight.Mode { return insight.ModeFlag }

func (sustainedLowReadiness) Evaluate(c *Context) (*Evaluation, error) {
	r, err := readinessGate(c)
	if err != nil {
		return nil, err
	}
	floor := c.Snapshot.Value(calibration.ReadinessFloor)
	days, start := lowStreak(c.Date, c.History, r, floor)
	if days == 0 {
		return &Evaluation{}, nil
	}
	return &Evaluation{
		Negative:      true,
		SustainedDays: days,
		StreakStart:   &start,
		Proposals: []Proposal{{
			Subject:    "readiness",
			MessageKey: "readiness.below_floor",
			Confidence: readinessConfidence(r),
			Cited: map[string]any{
				"score":        r.Score,
				"floor":        floor,
				"days_below":   days,
				"streak_start": core.DateKey(start),
			},
		}},
	}, nil
}

// lowStreak counts consecutive days ending on date with a stored score below floor.
// A day without a score breaks the streak.
func lowStreak(date time.Time, history []*readiness.DailyReadiness, today *readiness.DailyReadiness, floor float64) (int, time.Time) {
	scores := make(map[string]float64, len(history)+1)
	for _, h := range history {
		scores[core.DateKey(h.Date)] = h.Score
	}
	scores[core.DateKey(date)] = today.Score

	days := 0
	d := core.DateOf(date)
	for {
		s, ok := scores[core.DateKey(d)]
		if !ok || s >= floor {
			break
		}
		days++
		d = core.AddDays(d, -1)
	}
	return days, core.AddDays(date, -(days - 1))
}

// ---- readiness_context ----

type readinessContext struct{}

func (readinessContext) ID() core.RuleID       { return RuleReadinessContext }
func (readinessContext) MaxMode() insight.Mode { return insight.ModeSuggest }

func (readinessContext) Evaluate(c *Context) (*Evaluation, error) {
	if c.Planned == nil {
		return nil, notApplicable("no planned session")
	}
	r, err := readinessGate(c)
	if err != nil {
		return nil, err
	}
	ctxName := c.Planned.DecisionContext()
	floor := c.Snapshot.Value(calibration.ContextFloorName(ctxName))
	if r.Score >= floor {
		return &Evaluation{}, nil
	}
	return &Evaluation{
		Negative: true,
		Proposals: []Proposal{{
			Subject:    ctxName,
			MessageKey: "readiness.below_context_floor",
			Confidence: readinessConfidence(r),
			Cited: map[string]any{
				"score":             r.Score,
				"floor":             floor,
				"decision_context":  ctxName,
				"planned_kind":      c.Planned.Kind,
				"planned_intensity": c.Planned.Intensity,
			},
		}},
	}, nil
}

// ---- efficiency_trend ----

type efficiencyTrend struct{}

func (efficiencyTrend) ID() core.RuleID       { return RuleEfficiencyTrend }
func (efficiencyTrend) MaxMode() insight.Mode { return insight.ModeSuggest }

func (efficiencyTrend) Evaluate(c *Context) (*Evaluation, error) {
	if c.Table == nil {
		return nil, notApplicable("no signal table")
	}
	s, ok := c.Table.Get(signal.EfficiencyFactor)
	if !ok {
		return nil, notApplicable("no efficiency data")
	}
	xs, days := s.Window(core.AddDays(c.Date, -(efficiencyWindowDays-1)), c.Date)
	if len(xs) < efficiencyMinDays {
		return nil, notApplicable("%d efficiency days, need %d", len(xs), efficiencyMinDays)
	}
	pos := make([]float64, len(days))
	for i, d := range days {
		pos[i] = float64(d)
	}
	slope, ok := stats.Slope(pos, xs)
	mean := stats.Mean(xs)
	if !ok || mean == 0 {
		return nil, notApplicable("degenerate efficiency window")
	}
	change := slope * float64(efficiencyWindowDays-1) / math.Abs(mean)
	if math.Abs(change) < efficiencyMinChange {
		return &Evaluation{}, nil
	}

	dir := c.direction(signal.EfficiencyFactor, change)
	key := "efficiency.changed"
	switch dir {
	case insight.DirectionImproving:
		key = "efficiency.improving"
	case insight.DirectionDeclining:
		key = "efficiency.declining"
	}
	return &Evaluation{
		Negative: dir == insight.DirectionDeclining,
		Proposals: []Proposal{{
			Subject:    string(signal.EfficiencyFactor),
			Metric:     signal.EfficiencyFactor,
			Direction:  dir,
			MessageKey: key,
			Confidence: float64(len(xs)) / efficiencyWindowDays,
			Cited: map[string]any{
				"relative_change": change,
				"window_days":     efficiencyWindowDays,
				"observed_days":   len(xs),
				"mean":            mean,
			},
		}},
	}, nil
}

// ---- load_spike ----

type loadSpike struct{}

func (loadSpike) ID() core.RuleID       { return RuleLoadSpike }
func (loadSpike) MaxMode() insight.Mode { return insight.ModeSuggest }

func (loadSpike) Evaluate(c *Context) (*Evaluation, error) {
	atl, okA := valueOn(c.Table, signal.ATL, c.Date)
	ctl, okC := valueOn(c.Table, signal.CTL, c.Date)
	if !okA || !okC || ctl <= 0 {
		return nil, notApplicable("no training load on %s", core.DateKey(c.Date))
	}
	ratio := atl / ctl
	if ratio < loadSpikeRatio {
		return &Evaluation{}, nil
	}
	return &Evaluation{
		Negative: true,
		Proposals: []Proposal{{
			Subject:    "training_load",
			MessageKey: "load.acute_spike",
			Confidence: 1,
			Cited: map[string]any{
				"atl":   atl,
				"ctl":   ctl,
				"ratio": ratio,
			},
		}},
	}, nil
}

// ---- cardiac_drift_report ----

// cardiacDriftReport states the number only; drift has no agreed polarity
type cardiacDriftReport struct{}

func (cardiacDriftReport) ID() core.RuleID       { return RuleCardiacDrift }
func (cardiacDriftReport) MaxMode() insight.Mode { return insight.ModeInform }

func (cardiacDriftReport) Evaluate(c *Context) (*Evaluation, error) {
	if c.Table == nil {
		return nil, notApplicable("no signal table")
	}
	s, ok := c.Table.Get(signal.CardiacDrift)
	if !ok {
		return nil, notApplicable("no cardiac drift data")
	}
	for d := 0; d < driftLookbackDays; d++ {
		day := core.AddDays(c.Date, -d)
		v, ok := s.At(day)
		if !ok {
			continue
		}
		return &Evaluation{
			Proposals: []Proposal{{
				Subject:    string(signal.CardiacDrift),
				Metric:     signal.CardiacDrift,
				MessageKey: "cardiac_drift.reported",
				Confidence: 1,
				Cited: map[string]any{
					"value_pct": v,
					"date":      core.DateKey(day),
				},
			}},
		}, nil
	}
	return nil, notApplicable("no cardiac drift in %d days", driftLookbackDays)
}

// ---- self_regulation_pattern ----

type selfRegulationPattern struct{}

func (selfRegulationPattern) ID() core.RuleID       { return RuleSelfRegulation }
func (selfRegulationPattern) MaxMode() insight.Mode { return insight.ModeInform }

func (selfRegulationPattern) Evaluate(c *Context) (*Evaluation, error) {
	h := c.SelfReg
	if h.Resolved < 3 {
		return nil, notApplicable("%d resolved deviations", h.Resolved)
	}
	directions := make(map[string]int)
	for _, r := range h.Records {
		directions[string(r.Delta.Direction)]++
	}

	return &Evaluation{
		Proposals: []Proposal{{
			Subject:    "self_regulation",
			MessageKey: "self_regulation.pattern",
			Confidence: math.Min(1, float64(h.Resolved)/selfRegFullCount),
			Cited: map[string]any{
				"resolved":   h.Resolved,
				"positive":   h.Positive,
				"directions": directions,
			},
		}},
	}, nil
}

func valueOn(t *signal.Table, n signal.Name, day time.Time) (float64, bool) {
	if t == nil {
		return 0, false
	}
	s, ok := t.Get(n)
	if !ok {
		return 0, false
	}
	return s.At(day)
}
