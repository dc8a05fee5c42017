package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// TTestPValue computes the two-tailed p-value of a t statistic using Student's t-distribution
func TTestPValue(tStatistic float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 || math.IsNaN(tStatistic) {
		return 1.0
	}
	if math.IsInf(tStatistic, 0) {
		return 0
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(degreesOfFreedom)}
	return math.Min(1, 2*tDist.Survival(math.Abs(tStatistic)))
}

// CorrelationPValue computes the two-tailed p-value of a Pearson r over n pairs (df = n-2)
func CorrelationPValue(r float64, n int) float64 {
	if n < 3 || math.IsNaN(r) {
		return 1.0
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return TTestPValue(t, n-2)
}

// Bonferroni scales a p-value by the number of simultaneous hypotheses, capped at 1
func Bonferroni(p float64, m int) float64 {
	if m < 1 {
		m = 1
	}
	return math.Min(1, p*float64(m))
}
