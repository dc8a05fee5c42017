// Package correlation runs lag-shifted Pearson tests between an athlete's inputs and
// outputs and applies the significance, effect-size and multiple-comparison gates.
package correlation

import (
	"context"
	"math"
	"sort"
	"time"

	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/signal"
	"n1core/internal"
	"n1core/internal/aggregator"
	"n1core/internal/config"
	"n1core/internal/stats"
)

// Gates are the thresholds a hypothesis must pass to become a candidate
type Gates struct {
	MaxLagDays int
	MinPairs   int
	Alpha      float64
	MinAbsR    float64
}

// GatesFrom extracts the correlation gates from the analysis settings
func GatesFrom(a config.Analysis) Gates {
	return Gates{MaxLagDays: a.MaxLagDays, MinPairs: a.MinPairs, Alpha: a.Alpha, MinAbsR: a.MinAbsR}
}

// Engine evaluates every (input, output, lag) hypothesis in scope
type Engine struct {
	gates  Gates
	logger *internal.Logger
}

// NewEngine creates a correlation engine
func NewEngine(gates Gates, logger *internal.Logger) *Engine {
	return &Engine{gates: gates, logger: logger.Or()}
}

// Run tests the scope and returns the gated candidates together with the sets the
// persistence store needs to tell a faded finding from an untestable one.
func (e *Engine) Run(ctx context.Context, athleteID core.AthleteID, runDate time.Time, scope aggregator.Scope) (*correlation.Result, error) {
	tests, err := e.hypotheses(ctx, scope)
	if err != nil {
		return nil, err
	}

	result := &correlation.Result{
		AthleteID:   athleteID,
		RunDate:     core.DateOf(runDate),
		FamilySize:  len(tests),
		Significant: make(map[correlation.Key]bool),
		Tested:      make(map[correlation.Key]bool),
		Skipped:     scope.Skipped,
	}

	best := make(map[correlation.Pair]correlation.Test)
	for i := range tests {
		t := &tests[i]
		t.PCorrected = stats.Bonferroni(t.PValue, result.FamilySize)
		if t.N < e.gates.MinPairs {
			continue
		}
		result.Tested[t.Key] = true
		if !e.passes(*t) {
			continue
		}
		result.Significant[t.Key] = true

		pair := t.Key.Pair()
		if cur, ok := best[pair]; !ok || preferred(*t, cur) {
			best[pair] = *t
		}
	}

	for _, t := range best {
		result.Candidates = append(result.Candidates, correlation.Candidate{
			Key:        t.Key,
			R:          t.R,
			PValue:     t.PValue,
			PCorrected: t.PCorrected,
			N:          t.N,
		})
	}
	sort.Slice(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Key.String() < result.Candidates[j].Key.String()
	})

	e.logger.Debug("correlation: %d hypotheses, %d tested, %d significant, %d candidates",
		result.FamilySize, len(result.Tested), len(result.Significant), len(result.Candidates))
	return result, nil
}

// hypotheses computes r and the raw p-value for every hypothesis with a defined test.
// Its length is the Bonferroni family size.
func (e *Engine) hypotheses(ctx context.Context, scope aggregator.Scope) ([]correlation.Test, error) {
	var tests []correlation.Test
	for _, in := range scope.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, out := range scope.Outputs {
			offset := core.DaysBetween(in.Start, out.Start)
			for lag := 0; lag <= e.gates.MaxLagDays; lag++ {
				xs, ys := lagPairs(in, out, lag, offset)
				r, ok := stats.Pearson(xs, ys)
				if !ok {
					continue
				}
				tests = append(tests, correlation.Test{
					Key:    correlation.Key{Input: in.Name, Output: out.Name, LagDays: lag},
					N:      len(xs),
					R:      r,
					PValue: stats.CorrelationPValue(r, len(xs)),
				})
			}
		}
	}
	return tests, nil
}

func (e *Engine) passes(t correlation.Test) bool {
	return t.N >= e.gates.MinPairs &&
		t.PCorrected < e.gates.Alpha &&
		math.Abs(t.R) >= e.gates.MinAbsR
}

// pTieTolerance treats corrected p-values this close as equal
const pTieTolerance = 1e-12

// preferred reports whether a beats b for the same pair: lower corrected p, then smaller lag
func preferred(a, b correlation.Test) bool {
	if math.Abs(a.PCorrected-b.PCorrected) > pTieTolerance {
		return a.PCorrected < b.PCorrected
	}
	return a.Key.LagDays < b.Key.LagDays
}

// lagPairs aligns in[t] with out[t+lag] when the two series start offset days apart
func lagPairs(in, out *signal.Series, lag, offset int) ([]float64, []float64) {
	if offset == 0 {
		return stats.LagPairs(in.Values, out.Values, lag)
	}
	shifted := make([]float64, len(in.Values))
	for i := range shifted {
		j := i - offset
		if j < 0 || j >= len(out.Values) {
			shifted[i] = math.NaN()
			continue
		}
		shifted[i] = out.Values[j]
	}
	return stats.LagPairs(in.Values, shifted, lag)
}
