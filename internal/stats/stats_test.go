package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationPValue(t *testing.T) {
	// r = 0.55 over 30 pairs: t = 3.48 on 28 df
	p := CorrelationPValue(0.55, 30)
	assert.InDelta(t, 0.0017, p, 0.0005)

	assert.Equal(t, 1.0, CorrelationPValue(0.9, 2))
	assert.Equal(t, 0.0, CorrelationPValue(1, 12))
	assert.InDelta(t, 1.0, CorrelationPValue(0, 40), 1e-12)
}

func TestBonferroni(t *testing.T) {
	assert.InDelta(t, 0.048, Bonferroni(0.001, 48), 1e-12)
	assert.Equal(t, 1.0, Bonferroni(0.2, 10))
	assert.Equal(t, 0.01, Bonferroni(0.01, 0))
}

func TestLagPairsSkipsMissing(t *testing.T) {
	nan := math.NaN()
	x := []float64{1, 2, nan, 4, 5}
	y := []float64{10, 20, 30, nan, 50}

	xs, ys := LagPairs(x, y, 1)
	// (1,20) (2,30) (nan,nan) (4,50)
	assert.Equal(t, []float64{1, 2, 4}, xs)
	assert.Equal(t, []float64{20, 30, 50}, ys)

	xs, _ = LagPairs(x, y, 5)
	assert.Empty(t, xs)
}

func TestPearson(t *testing.T) {
	r, ok := Pearson([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10})
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9)

	r, ok = Pearson([]float64{1, 2, 3, 4, 5}, []float64{5, 4, 3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)

	_, ok = Pearson([]float64{1, 2, 3}, []float64{7, 7, 7})
	assert.False(t, ok, "constant series has no correlation")

	_, ok = Pearson([]float64{1, 2}, []float64{1, 2})
	assert.False(t, ok)
}

func TestSlope(t *testing.T) {
	b, ok := Slope([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	require.True(t, ok)
	assert.InDelta(t, 2.0, b, 1e-9)

	_, ok = Slope([]float64{2, 2, 2}, []float64{1, 2, 3})
	assert.False(t, ok)
}

func TestPointBiserial(t *testing.T) {
	r, ok := PointBiserial([]float64{20, 30, 70, 80}, []bool{false, false, true, true})
	require.True(t, ok)
	assert.Greater(t, r, 0.9)

	_, ok = PointBiserial([]float64{20, 30, 70}, []bool{true, true, true})
	assert.False(t, ok)
}
