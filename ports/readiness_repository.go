package ports

import (
	"context"
	"time"

	"n1core/domain/core"
	"n1core/domain/readiness"
)

// ReadinessRepository stores one composite score per athlete per day.
// Upsert overwrites the row for the same date.
type ReadinessRepository interface {
	Upsert(ctx context.Context, r *readiness.DailyReadiness) error
	Get(ctx context.Context, athleteID core.AthleteID, date time.Time) (*readiness.DailyReadiness, error)
	Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*readiness.DailyReadiness, error)
}
