package correlation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/domain/correlation"
	"n1core/domain/signal"
	"n1core/internal"
	"n1core/internal/aggregator"
	"n1core/internal/config"
	"n1core/internal/testkit"
)

var runDate = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func series(name signal.Name, kind signal.Kind, values []float64) *signal.Series {
	return &signal.Series{Name: name, Kind: kind, Start: runDate.AddDate(0, 0, -len(values)), Values: values}
}

func newEngine() *Engine {
	return NewEngine(GatesFrom(config.DefaultAnalysis()), internal.Discard)
}

func TestRunDetectsPlantedSleepEfficiencyRelationship(t *testing.T) {
	// 30 days of sleep around 7.2h, efficiency correlated at r = 0.55 on the same day
	sleep, eff := testkit.NewRand(42).CorrelatedPair(30, 0.55, 7.2, 0.6)
	for i := range eff {
		eff[i] = 1.5 + 0.05*eff[i]
	}
	scope := aggregator.Scope{
		Inputs:  []*signal.Series{series(signal.SleepHours, signal.KindInput, sleep)},
		Outputs: []*signal.Series{series(signal.EfficiencyFactor, signal.KindOutput, eff)},
	}

	res, err := newEngine().Run(context.Background(), "a-1", runDate, scope)
	require.NoError(t, err)

	assert.Equal(t, 8, res.FamilySize, "one pair across lags 0..7")
	require.Len(t, res.Candidates, 1)
	c := res.Candidates[0]
	assert.Equal(t, correlation.Key{Input: signal.SleepHours, Output: signal.EfficiencyFactor, LagDays: 0}, c.Key)
	assert.Equal(t, 30, c.N)
	assert.InDelta(t, 0.55, c.R, 1e-9)
	assert.InDelta(t, 0.00164, c.PValue, 0.0001)
	assert.InDelta(t, c.PValue*8, c.PCorrected, 1e-12)
	assert.Len(t, res.Tested, 8)
	assert.Len(t, res.Significant, 1)
}

func TestRunGateSoundnessUnderNull(t *testing.T) {
	const trials = 200
	engine := newEngine()
	falsePositives := 0
	for trial := 0; trial < trials; trial++ {
		g := testkit.NewRand(uint64(1000 + trial))
		scope := aggregator.Scope{
			Inputs: []*signal.Series{
				series(signal.SleepHours, signal.KindInput, g.Normals(60)),
				series(signal.Stress, signal.KindInput, g.Normals(60)),
			},
			Outputs: []*signal.Series{
				series(signal.EfficiencyFactor, signal.KindOutput, g.Normals(60)),
				series(signal.PaceAtFixedHR, signal.KindOutput, g.Normals(60)),
			},
		}
		res, err := engine.Run(context.Background(), "null", runDate, scope)
		require.NoError(t, err)
		if len(res.Candidates) > 0 {
			falsePositives++
		}
	}
	// family-wise rate is bounded by alpha = 0.05; allow two standard errors of sampling noise
	assert.LessOrEqual(t, falsePositives, 15)
}

func TestRunGates(t *testing.T) {
	nan := math.NaN()

	t.Run("fewer than ten pairs is untested", func(t *testing.T) {
		x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
		scope := aggregator.Scope{
			Inputs:  []*signal.Series{series(signal.Stress, signal.KindInput, x)},
			Outputs: []*signal.Series{series(signal.WorkoutCompletion, signal.KindOutput, x)},
		}
		res, err := newEngine().Run(context.Background(), "a-1", runDate, scope)
		require.NoError(t, err)
		assert.Empty(t, res.Candidates)
		assert.Empty(t, res.Tested)
		assert.Positive(t, res.FamilySize, "computed hypotheses still count toward the family")
	})

	t.Run("missing days shrink n", func(t *testing.T) {
		x := make([]float64, 20)
		y := make([]float64, 20)
		for i := range x {
			x[i] = float64(i)
			y[i] = float64(2 * i)
			if i%2 == 0 {
				y[i] = nan
			}
		}
		scope := aggregator.Scope{
			Inputs:  []*signal.Series{series(signal.Soreness, signal.KindInput, x)},
			Outputs: []*signal.Series{series(signal.PaceAtFixedHR, signal.KindOutput, y)},
		}
		res, err := newEngine().Run(context.Background(), "a-1", runDate, scope)
		require.NoError(t, err)
		require.NotEmpty(t, res.Candidates)
		assert.Equal(t, 10, res.Candidates[0].N)
		assert.Equal(t, 0, res.Candidates[0].Key.LagDays)
	})

	t.Run("constant series is not a hypothesis", func(t *testing.T) {
		flat := make([]float64, 30)
		for i := range flat {
			flat[i] = 7
		}
		scope := aggregator.Scope{
			Inputs:  []*signal.Series{series(signal.SleepHours, signal.KindInput, flat)},
			Outputs: []*signal.Series{series(signal.EfficiencyFactor, signal.KindOutput, testkit.NewRand(1).Normals(30))},
		}
		res, err := newEngine().Run(context.Background(), "a-1", runDate, scope)
		require.NoError(t, err)
		assert.Zero(t, res.FamilySize)
		assert.Empty(t, res.Tested)
	})
}

func TestPreferredLag(t *testing.T) {
	k := func(lag int) correlation.Key {
		return correlation.Key{Input: signal.HRV, Output: signal.EfficiencyFactor, LagDays: lag}
	}
	low := correlation.Test{Key: k(3), PCorrected: 0.001}
	high := correlation.Test{Key: k(1), PCorrected: 0.01}
	assert.True(t, preferred(low, high), "lower corrected p wins")

	tieA := correlation.Test{Key: k(2), PCorrected: 0.004}
	tieB := correlation.Test{Key: k(5), PCorrected: 0.004}
	assert.True(t, preferred(tieA, tieB), "tie goes to the smaller lag")
	assert.False(t, preferred(tieB, tieA))
}

func TestRunTieBreakKeepsLosingLagSignificant(t *testing.T) {
	// a period-2 pattern correlates perfectly at lags 0, 2, 4 and 6
	x := make([]float64, 40)
	y := make([]float64, 40)
	for i := range x {
		x[i] = float64(i % 2)
		y[i] = 3 * float64(i%2)
	}
	scope := aggregator.Scope{
		Inputs:  []*signal.Series{series(signal.Motivation, signal.KindInput, x)},
		Outputs: []*signal.Series{series(signal.WorkoutCompletion, signal.KindOutput, y)},
	}
	res, err := newEngine().Run(context.Background(), "a-1", runDate, scope)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 0, res.Candidates[0].Key.LagDays)
	assert.True(t, res.Significant[correlation.Key{Input: signal.Motivation, Output: signal.WorkoutCompletion, LagDays: 2}])
	assert.True(t, res.Significant[correlation.Key{Input: signal.Motivation, Output: signal.WorkoutCompletion, LagDays: 1}],
		"odd lags are perfectly negative and also pass")
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scope := aggregator.Scope{
		Inputs:  []*signal.Series{series(signal.SleepHours, signal.KindInput, testkit.NewRand(3).Normals(30))},
		Outputs: []*signal.Series{series(signal.EfficiencyFactor, signal.KindOutput, testkit.NewRand(4).Normals(30))},
	}
	_, err := newEngine().Run(ctx, "a-1", runDate, scope)
	assert.ErrorIs(t, err, context.Canceled)
}
