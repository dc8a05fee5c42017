package stats

import (
	"math"

	mstats "github.com/montanaflynn/stats"
)

// MinPairsForTest is the fewest pairs for which a correlation is computed at all
const MinPairsForTest = 3

// LagPairs aligns x[t] with y[t+lag] and keeps only pairs where both sides are observed.
// NaN marks a missing day; nothing is filled.
func LagPairs(x, y []float64, lag int) (xs, ys []float64) {
	if lag < 0 {
		return nil, nil
	}
	for t := 0; t+lag < len(y) && t < len(x); t++ {
		a, b := x[t], y[t+lag]
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		xs = append(xs, a)
		ys = append(ys, b)
	}
	return xs, ys
}

// Pearson returns r for paired samples. ok is false when there are too few pairs or
// either side has zero variance, in which case no test exists.
func Pearson(xs, ys []float64) (r float64, ok bool) {
	if len(xs) != len(ys) || len(xs) < MinPairsForTest {
		return 0, false
	}
	vx, err := mstats.PopulationVariance(xs)
	if err != nil || vx == 0 {
		return 0, false
	}
	vy, err := mstats.PopulationVariance(ys)
	if err != nil || vy == 0 {
		return 0, false
	}
	r, err = mstats.Pearson(xs, ys)
	if err != nil || math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// Mean returns the arithmetic mean, or NaN for empty input
func Mean(xs []float64) float64 {
	m, err := mstats.Mean(xs)
	if err != nil {
		return math.NaN()
	}
	return m
}

// Observed drops NaN entries
func Observed(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
