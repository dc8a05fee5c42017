package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColdStartWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, c := range Components {
		sum += ColdStartWeights[c]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Zero(t, ColdStartWeights[HRVTrend])
	assert.Zero(t, ColdStartWeights[SleepTrend])
}

func TestConsistent(t *testing.T) {
	d := &DailyReadiness{
		Score: 72.4,
		Breakdown: []ComponentScore{
			{Component: TSBDistance, Contribution: 30.0},
			{Component: EfficiencyTrend, Contribution: 42.42},
		},
	}
	assert.True(t, d.Consistent())

	d.Score = 80
	assert.False(t, d.Consistent())

	d.Score = 101
	d.Breakdown = []ComponentScore{{Contribution: 101}}
	assert.False(t, d.Consistent())
}

func TestComponentLookup(t *testing.T) {
	d := &DailyReadiness{Breakdown: []ComponentScore{{Component: CompletionRate, Normalized: 0.8}}}

	cs, ok := d.Component(CompletionRate)
	assert.True(t, ok)
	assert.Equal(t, 0.8, cs.Normalized)

	_, ok = d.Component(HRVTrend)
	assert.False(t, ok)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 72.4, Round1(72.42))
	assert.Equal(t, 72.5, Round1(72.45000001))
}
