// Package calibration re-estimates per-athlete readiness thresholds from logged
// decisions and their outcomes.
package calibration

import (
	"fmt"
	"sort"
	"time"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/internal"
	"n1core/internal/stats"
)

// Reasons an estimate keeps the prior value
const (
	ReasonBelowFloor   = "below_floor"
	ReasonOneClass     = "single_outcome_class"
	ReasonNoSeparation = "no_positive_separation"
	ReasonUnchanged    = "unchanged"
)

// Estimate is the decision for one threshold name
type Estimate struct {
	Name       string
	Prior      float64
	Value      float64
	SampleSize int
	Updated    bool
	Reason     string
}

// Estimator applies the Youden-J cut with a sample-size floor
type Estimator struct {
	floor  int
	logger *internal.Logger
}

// NewEstimator creates an estimator. A floor below calibration.MinSampleSize is raised to it.
func NewEstimator(floor int, logger *internal.Logger) *Estimator {
	if floor < calibration.MinSampleSize {
		floor = calibration.MinSampleSize
	}
	return &Estimator{floor: floor, logger: logger.Or()}
}

// Plan estimates every readiness floor the records support: one per decision context
// plus the pooled readiness_floor. Estimates that keep the prior value are returned too,
// with Updated false and a reason.
func (e *Estimator) Plan(records []calibration.Record, snap *calibration.Snapshot) []Estimate {
	byContext := make(map[string][]calibration.Record)
	for _, r := range records {
		byContext[r.DecisionContext] = append(byContext[r.DecisionContext], r)
	}
	contexts := make([]string, 0, len(byContext))
	for ctx := range byContext {
		contexts = append(contexts, ctx)
	}
	sort.Strings(contexts)

	out := make([]Estimate, 0, len(contexts)+1)
	for _, ctx := range contexts {
		out = append(out, e.Estimate(calibration.ContextFloorName(ctx), byContext[ctx], snap))
	}
	if len(records) > 0 {
		out = append(out, e.Estimate(calibration.ReadinessFloor, records, snap))
	}
	return out
}

// Estimate re-estimates one threshold. Below the floor the prior value is always kept.
func (e *Estimator) Estimate(name string, records []calibration.Record, snap *calibration.Snapshot) Estimate {
	prior := snap.Value(name)
	est := Estimate{Name: name, Prior: prior, Value: prior, SampleSize: len(records)}

	if len(records) < e.floor {
		est.Reason = ReasonBelowFloor
		e.logger.Debug("calibration %s: %d records, floor %d", name, len(records), e.floor)
		return est
	}

	cut, reason := youdenCut(records)
	if reason != "" {
		est.Reason = reason
		return est
	}
	if prev, ok := snap.Values[name]; ok && prev.Value == cut && prev.SampleSize == len(records) {
		est.Reason = ReasonUnchanged
		return est
	}
	est.Value = cut
	est.Updated = true
	return est
}

// youdenCut returns the readiness score that maximizes sensitivity + specificity − 1 when
// "score >= cut" predicts a good outcome. Ties go to the lowest cut.
func youdenCut(records []calibration.Record) (float64, string) {
	scores := make([]float64, len(records))
	good := make([]bool, len(records))
	goods, bads := 0, 0
	for i, r := range records {
		scores[i] = r.ReadinessScore
		good[i] = r.Outcome.Good()
		if good[i] {
			goods++
		} else {
			bads++
		}
	}
	if goods == 0 || bads == 0 {
		return 0, ReasonOneClass
	}
	if rpb, ok := stats.PointBiserial(scores, good); !ok || rpb <= 0 {
		return 0, ReasonNoSeparation
	}

	cuts := append([]float64(nil), scores...)
	sort.Float64s(cuts)

	best, bestJ := 0.0, -2.0
	for i, c := range cuts {
		if i > 0 && c == cuts[i-1] {
			continue
		}
		tp, fp := 0, 0
		for j, s := range scores {
			if s < c {
				continue
			}
			if good[j] {
				tp++
			} else {
				fp++
			}
		}
		j := float64(tp)/float64(goods) - float64(fp)/float64(bads)
		if j > bestJ {
			best, bestJ = c, j
		}
	}
	return best, ""
}

// Rows converts the updated estimates into threshold rows ready to append
func Rows(athleteID core.AthleteID, estimates []Estimate, at time.Time) []calibration.Threshold {
	var rows []calibration.Threshold
	for _, e := range estimates {
		if !e.Updated {
			continue
		}
		rows = append(rows, calibration.Threshold{
			AthleteID:   athleteID,
			Name:        e.Name,
			Value:       e.Value,
			SampleSize:  e.SampleSize,
			LastUpdated: at,
		})
	}
	return rows
}

func (e Estimate) String() string {
	return fmt.Sprintf("%s: %.1f -> %.1f (n=%d, updated=%t %s)", e.Name, e.Prior, e.Value, e.SampleSize, e.Updated, e.Reason)
}
