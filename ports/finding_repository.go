package ports

import (
	"context"
	"time"

	"n1core/domain/core"
	"n1core/domain/correlation"
)

// FindingRepository persists correlation findings, unique on (athlete, input, output, lag).
//
// Save is a conditional upsert: it inserts a new finding or overwrites an existing one only
// when the stored last_run_date is strictly earlier than f.LastRunDate. applied is false when
// the write lost that comparison, which is how retried runs become no-ops.
type FindingRepository interface {
	Get(ctx context.Context, athleteID core.AthleteID, key correlation.Key) (*correlation.Finding, error)
	GetByID(ctx context.Context, id core.FindingID) (*correlation.Finding, error)
	ListByAthlete(ctx context.Context, athleteID core.AthleteID, activeOnly bool) ([]*correlation.Finding, error)
	Save(ctx context.Context, f *correlation.Finding) (applied bool, err error)
	MarkSurfaced(ctx context.Context, id core.FindingID, at time.Time) error
}
