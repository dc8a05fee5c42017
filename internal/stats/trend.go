package stats

import (
	"gonum.org/v1/gonum/stat"
)

// Slope fits y = a + b·x by least squares and returns b. ok is false for fewer than
// two points or when every x is the same.
func Slope(xs, ys []float64) (float64, bool) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, false
	}
	if stat.Variance(xs, nil) == 0 {
		return 0, false
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta, true
}

// PointBiserial correlates a continuous score with a 0/1 outcome
func PointBiserial(scores []float64, good []bool) (float64, bool) {
	if len(scores) != len(good) || len(scores) < MinPairsForTest {
		return 0, false
	}
	ys := make([]float64, len(good))
	pos := 0
	for i, g := range good {
		if g {
			ys[i] = 1
			pos++
		}
	}
	if pos == 0 || pos == len(good) || stat.Variance(scores, nil) == 0 {
		return 0, false
	}
	return stat.Correlation(scores, ys, nil), true
}
