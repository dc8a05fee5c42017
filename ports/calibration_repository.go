package ports

import (
	"context"

	"n1core/domain/calibration"
	"n1core/domain/core"
)

// ThresholdRepository is the versioned parameter store. Rows are appended, never updated.
type ThresholdRepository interface {
	Append(ctx context.Context, rows []calibration.Threshold) ([]calibration.Threshold, error)
	// Snapshot returns the newest row per name visible at call time
	Snapshot(ctx context.Context, athleteID core.AthleteID) (*calibration.Snapshot, error)
	// SnapshotAt returns the newest row per name with version <= version
	SnapshotAt(ctx context.Context, athleteID core.AthleteID, version int64) (*calibration.Snapshot, error)
	History(ctx context.Context, athleteID core.AthleteID, name string) ([]calibration.Threshold, error)
}

// CalibrationRepository is the append-only log of readiness-at-decision and outcome pairs.
// Append ignores a second record for the same (athlete, date, decision context).
type CalibrationRepository interface {
	Append(ctx context.Context, r *calibration.Record) (inserted bool, err error)
	ListByAthlete(ctx context.Context, athleteID core.AthleteID) ([]calibration.Record, error)
}
