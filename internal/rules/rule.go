// Package rules is the daily intelligence rule engine. Rules read only committed state
// and produce advisory insight records; nothing here can change a training plan.
package rules

import (
	"time"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/insight"
	"n1core/domain/readiness"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
	"n1core/internal/config"
	"n1core/ports"
)

// Context is the read-only view one athlete's evaluation sees. Findings is the
// surfacing-eligible set after the correlation daily cap. History holds the stored
// readiness scores up to and including Date, oldest first.
type Context struct {
	AthleteID core.AthleteID
	Date      time.Time
	Run       config.RunConfig
	Table     *signal.Table
	Readiness *readiness.DailyReadiness
	History   []*readiness.DailyReadiness
	Snapshot  *calibration.Snapshot
	Findings  []*correlation.Finding
	SelfReg   selfreg.History
	Planned   *selfreg.WorkoutDescriptor
	Polarity  ports.PolarityRegistry
}

// Proposal is one insight a rule wants to emit, before mode, guard and caps apply
type Proposal struct {
	Subject    string
	Metric     signal.Name
	Direction  insight.Direction
	MessageKey string
	Cited      map[string]any
	Confidence float64
	FindingID  core.FindingID
}

// Evaluation is a rule's reading for the day. Negative means the rule's signal is
// currently adverse; SustainedDays counts the consecutive adverse days ending today.
type Evaluation struct {
	Proposals     []Proposal
	Negative      bool
	SustainedDays int
	StreakStart   *time.Time
}

// Rule is one condition→insight mapping. Evaluate returns an error wrapping
// core.ErrNotApplicable when data is missing and core.ErrSuppressed when the inputs are
// too thin to speak with confidence.
type Rule interface {
	ID() core.RuleID
	MaxMode() insight.Mode
	Evaluate(c *Context) (*Evaluation, error)
}

func (c *Context) polarity(metric signal.Name) signal.Polarity {
	if c.Polarity == nil {
		return signal.PolarityUnknown
	}
	return c.Polarity.Polarity(metric)
}

// direction maps a signed change on a metric to evaluative wording, or to none when the
// metric's polarity is not on the allowlist
func (c *Context) direction(metric signal.Name, change float64) insight.Direction {
	if change == 0 {
		return insight.DirectionNone
	}
	switch c.polarity(metric) {
	case signal.PolarityHigherBetter:
		if change > 0 {
			return insight.DirectionImproving
		}
		return insight.DirectionDeclining
	case signal.PolarityLowerBetter:
		if change < 0 {
			return insight.DirectionImproving
		}
		return insight.DirectionDeclining
	}
	return insight.DirectionNone
}
