package calibration

import (
	"fmt"
	"strings"
	"time"

	"n1core/domain/core"
	"n1core/domain/readiness"
)

// MinSampleSize is the floor below which a threshold is never re-estimated
const MinSampleSize = 30

// Threshold names
const (
	ReadinessFloor        = "readiness_floor"
	ContextFloorPrefix    = "readiness_floor:"
	TSBTarget             = "tsb_target"
	WeightPrefix          = "weight_"
	DefaultContextFloor   = 60.0
	DefaultReadinessFloor = 40.0
	DefaultTSBTarget      = 5.0
)

// ContextFloorName returns the threshold name for a decision context
func ContextFloorName(decisionContext string) string {
	return ContextFloorPrefix + decisionContext
}

// WeightName returns the threshold name holding a component weight
func WeightName(c readiness.Component) string {
	return WeightPrefix + string(c)
}

// ColdStart returns the conservative starting value for a threshold name
func ColdStart(name string) (float64, bool) {
	switch {
	case name == ReadinessFloor:
		return DefaultReadinessFloor, true
	case name == TSBTarget:
		return DefaultTSBTarget, true
	case strings.HasPrefix(name, ContextFloorPrefix):
		return DefaultContextFloor, true
	case strings.HasPrefix(name, WeightPrefix):
		w, ok := readiness.ColdStartWeights[readiness.Component(strings.TrimPrefix(name, WeightPrefix))]
		return w, ok
	}
	return 0, false
}

// Threshold is one versioned row of per-athlete parameters. Rows are never updated in place.
type Threshold struct {
	Version     int64          `json:"version"`
	AthleteID   core.AthleteID `json:"athlete_id"`
	Name        string         `json:"threshold_name"`
	Value       float64        `json:"value"`
	SampleSize  int            `json:"sample_size"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Snapshot is the parameter set pinned at the start of a run. Version is the highest
// row version visible to the run.
type Snapshot struct {
	AthleteID core.AthleteID
	Version   int64
	Values    map[string]Threshold
}

// NewSnapshot builds a snapshot from rows, keeping the newest version per name
func NewSnapshot(athleteID core.AthleteID, rows []Threshold) *Snapshot {
	s := &Snapshot{AthleteID: athleteID, Values: make(map[string]Threshold, len(rows))}
	for _, r := range rows {
		if prev, ok := s.Values[r.Name]; ok && prev.Version >= r.Version {
			continue
		}
		s.Values[r.Name] = r
		if r.Version > s.Version {
			s.Version = r.Version
		}
	}
	return s
}

// Lookup returns the calibrated value, if any
func (s *Snapshot) Lookup(name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	t, ok := s.Values[name]
	return t.Value, ok
}

// Value returns the calibrated value or the cold-start constant
func (s *Snapshot) Value(name string) float64 {
	if v, ok := s.Lookup(name); ok {
		return v
	}
	v, _ := ColdStart(name)
	return v
}

// OutcomeLabel classifies how a decision turned out
type OutcomeLabel string

const (
	OutcomeCompletedWell OutcomeLabel = "completed_well"
	OutcomeStruggled     OutcomeLabel = "struggled"
	OutcomeSkipped       OutcomeLabel = "skipped"
)

// Good reports whether the label is the positive class
func (o OutcomeLabel) Good() bool { return o == OutcomeCompletedWell }

// Valid reports whether the label is known
func (o OutcomeLabel) Valid() bool {
	switch o {
	case OutcomeCompletedWell, OutcomeStruggled, OutcomeSkipped:
		return true
	}
	return false
}

// Record is one readiness-at-decision and outcome pair. Append-only.
type Record struct {
	ID              core.RecordID  `json:"id"`
	AthleteID       core.AthleteID `json:"athlete_id"`
	Date            time.Time      `json:"date"`
	ReadinessScore  float64        `json:"readiness_score"`
	DecisionContext string         `json:"decision_context"`
	Outcome         OutcomeLabel   `json:"outcome_label"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Validate checks a record before it is appended
func (r *Record) Validate() error {
	if r.AthleteID == "" {
		return core.NewValidationError("athlete_id", "required")
	}
	if r.DecisionContext == "" {
		return core.NewValidationError("decision_context", "required")
	}
	if !r.Outcome.Valid() {
		return core.NewValidationError("outcome_label", fmt.Sprintf("unknown label %q", r.Outcome))
	}
	if r.ReadinessScore < 0 || r.ReadinessScore > 100 {
		return core.NewValidationError("readiness_score", "must be within [0,100]")
	}
	return nil
}
