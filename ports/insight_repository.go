package ports

import (
	"context"
	"time"

	"n1core/domain/core"
	"n1core/domain/insight"
)

// InsightRepository is the append-only audit trail of emitted insights, unique on
// (athlete, rule, date, subject). Only the athlete response may be attached later.
type InsightRepository interface {
	Insert(ctx context.Context, r *insight.Record) (inserted bool, err error)
	Get(ctx context.Context, id core.InsightID) (*insight.Record, error)
	ListByDate(ctx context.Context, athleteID core.AthleteID, date time.Time) ([]*insight.Record, error)
	Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*insight.Record, error)
	// Latest returns the newest insight for (rule, subject) dated strictly before date, or nil
	Latest(ctx context.Context, athleteID core.AthleteID, ruleID core.RuleID, subject string, before time.Time) (*insight.Record, error)
	SetResponse(ctx context.Context, id core.InsightID, resp insight.Response, at time.Time) error
}

// RuleStateRepository stores the per-athlete, per-rule mode. Get returns nil when absent.
type RuleStateRepository interface {
	Get(ctx context.Context, athleteID core.AthleteID, ruleID core.RuleID) (*insight.RuleState, error)
	Save(ctx context.Context, s *insight.RuleState) error
}
