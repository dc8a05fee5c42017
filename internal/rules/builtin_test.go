package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/insight"
	"n1core/domain/readiness"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
	"n1core/internal/config"
)

func ruleContext() *Context {
	return &Context{AthleteID: athlete, Date: date, Run: runConfig(config.DefaultFlags()), Polarity: allowlist}
}

func TestDefaultRulesOrder(t *testing.T) {
	var ids []core.RuleID
	for _, r := range DefaultRules() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []core.RuleID{
		RuleCorrelationInsight, RuleSustainedLowReadiness, RuleReadinessContext,
		RuleEfficiencyTrend, RuleLoadSpike, RuleCardiacDrift, RuleSelfRegulation,
	}, ids)
}

func TestEfficiencyTrendWording(t *testing.T) {
	rising := make([]float64, 14)
	for i := range rising {
		rising[i] = 1.40 + 0.01*float64(i)
	}
	c := ruleContext()
	c.Table = grid(map[signal.Name][]float64{signal.EfficiencyFactor: rising})

	ev, err := efficiencyTrend{}.Evaluate(c)
	require.NoError(t, err)
	require.Len(t, ev.Proposals, 1)
	assert.Equal(t, insight.DirectionImproving, ev.Proposals[0].Direction)
	assert.Equal(t, "efficiency.improving", ev.Proposals[0].MessageKey)
	assert.False(t, ev.Negative)
	assert.Equal(t, 1.0, ev.Proposals[0].Confidence)

	// without a registered polarity the same change is reported neutrally
	c.Polarity = polarities{}
	ev, err = efficiencyTrend{}.Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, insight.DirectionNone, ev.Proposals[0].Direction)
	assert.Equal(t, "efficiency.changed", ev.Proposals[0].MessageKey)
	assert.False(t, ev.Negative)

	flat := make([]float64, 14)
	for i := range flat {
		flat[i] = 1.5
	}
	c.Table = grid(map[signal.Name][]float64{signal.EfficiencyFactor: flat})
	ev, err = efficiencyTrend{}.Evaluate(c)
	require.NoError(t, err)
	assert.Empty(t, ev.Proposals)

	c.Table = grid(map[signal.Name][]float64{signal.EfficiencyFactor: {1.5, 1.4, 1.3}})
	_, err = efficiencyTrend{}.Evaluate(c)
	assert.ErrorIs(t, err, core.ErrNotApplicable)
}

func TestLoadSpike(t *testing.T) {
	c := ruleContext()
	c.Table = grid(map[signal.Name][]float64{signal.ATL: {72}, signal.CTL: {60}})
	ev, err := loadSpike{}.Evaluate(c)
	require.NoError(t, err)
	assert.Empty(t, ev.Proposals, "ratio 1.2 is below the spike threshold")

	c.Table = grid(map[signal.Name][]float64{signal.ATL: {84}, signal.CTL: {60}})
	ev, err = loadSpike{}.Evaluate(c)
	require.NoError(t, err)
	require.Len(t, ev.Proposals, 1)
	assert.InDelta(t, 1.4, ev.Proposals[0].Cited["ratio"], 1e-12)
	assert.True(t, ev.Negative)

	c.Table = grid(nil)
	_, err = loadSpike{}.Evaluate(c)
	assert.ErrorIs(t, err, core.ErrNotApplicable)
}

func TestReadinessContextUsesCalibratedFloor(t *testing.T) {
	c := ruleContext()
	planned := selfreg.WorkoutDescriptor{Kind: "run", DurationMin: 50, Intensity: "tempo"}
	c.Planned = &planned
	c.Readiness = &readiness.DailyReadiness{AthleteID: athlete, Date: date, Score: 55}

	ev, err := readinessContext{}.Evaluate(c)
	require.NoError(t, err)
	require.Len(t, ev.Proposals, 1, "55 is below the cold-start floor of 60")
	assert.Equal(t, selfreg.ContextQuality, ev.Proposals[0].Subject)

	c.Snapshot = calibration.NewSnapshot(athlete, []calibration.Threshold{
		{Version: 3, AthleteID: athlete, Name: calibration.ContextFloorName(selfreg.ContextQuality), Value: 50, SampleSize: 30},
	})
	ev, err = readinessContext{}.Evaluate(c)
	require.NoError(t, err)
	assert.Empty(t, ev.Proposals)

	c.Planned = nil
	_, err = readinessContext{}.Evaluate(c)
	assert.ErrorIs(t, err, core.ErrNotApplicable)
}

func TestCorrelationInsightWording(t *testing.T) {
	c := ruleContext()
	_, err := correlationInsight{}.Evaluate(c)
	assert.ErrorIs(t, err, core.ErrNotApplicable)

	c.Polarity = polarities{signal.WorkoutCompletion: signal.PolarityAmbiguous}
	c.Findings = []*correlation.Finding{{
		ID:         "f-2",
		Key:        correlation.Key{Input: signal.Stress, Output: signal.WorkoutCompletion, LagDays: 1},
		R:          -0.42,
		Confidence: 0.5,
	}}
	ev, err := correlationInsight{}.Evaluate(c)
	require.NoError(t, err)
	require.Len(t, ev.Proposals, 1)
	p := ev.Proposals[0]
	assert.Equal(t, insight.DirectionNone, p.Direction)
	assert.Equal(t, "correlation.association", p.MessageKey)
	assert.Equal(t, core.FindingID("f-2"), p.FindingID)
	assert.Equal(t, "stress->workout_completion@1", p.Subject)
}

func TestSelfRegulationPattern(t *testing.T) {
	c := ruleContext()
	c.SelfReg = selfreg.History{Resolved: 2, Positive: 2}
	_, err := selfRegulationPattern{}.Evaluate(c)
	assert.ErrorIs(t, err, core.ErrNotApplicable)

	c.SelfReg = selfreg.History{
		Resolved: 3,
		Positive: 2,
		Records: []*selfreg.Record{
			{Delta: selfreg.Delta{Direction: selfreg.DirectionReduced}},
			{Delta: selfreg.Delta{Direction: selfreg.DirectionReduced}},
			{Delta: selfreg.Delta{Direction: selfreg.DirectionSwapped}},
		},
	}
	ev, err := selfRegulationPattern{}.Evaluate(c)
	require.NoError(t, err)
	require.Len(t, ev.Proposals, 1)
	assert.InDelta(t, 0.6, ev.Proposals[0].Confidence, 1e-12)
	assert.Equal(t, map[string]int{"reduced": 2, "swapped": 1}, ev.Proposals[0].Cited["directions"])
}
