package ports

import (
	"context"
	"time"

	"n1core/domain/core"
	"n1core/domain/selfreg"
)

// SelfRegulationRepository stores planned-vs-actual deviations.
// Insert is idempotent on (athlete, activity). Finalize applies only to a pending record.
type SelfRegulationRepository interface {
	Insert(ctx context.Context, r *selfreg.Record) (inserted bool, err error)
	Pending(ctx context.Context, athleteID core.AthleteID) ([]*selfreg.Record, error)
	Finalize(ctx context.Context, r *selfreg.Record) (applied bool, err error)
	Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*selfreg.Record, error)
}
