package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/ports"
)

// ThresholdRepositoryImpl implements the append-only versioned parameter store.
// The BIGSERIAL version column is the global, monotonic row id snapshots pin.
type ThresholdRepositoryImpl struct {
	db *sqlx.DB
}

// NewThresholdRepository creates a new PostgreSQL threshold repository
func NewThresholdRepository(db *sqlx.DB) ports.ThresholdRepository {
	return &ThresholdRepositoryImpl{db: db}
}

type thresholdRow struct {
	Version     int64     `db:"version"`
	AthleteID   string    `db:"athlete_id"`
	Name        string    `db:"threshold_name"`
	Value       float64   `db:"value"`
	SampleSize  int       `db:"sample_size"`
	LastUpdated time.Time `db:"last_updated"`
}

func (row thresholdRow) threshold() calibration.Threshold {
	return calibration.Threshold{
		Version:     row.Version,
		AthleteID:   core.AthleteID(row.AthleteID),
		Name:        row.Name,
		Value:       row.Value,
		SampleSize:  row.SampleSize,
		LastUpdated: row.LastUpdated,
	}
}

// Append inserts rows in one transaction and returns them with their versions
func (r *ThresholdRepositoryImpl) Append(ctx context.Context, rows []calibration.Threshold) ([]calibration.Threshold, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	out := make([]calibration.Threshold, len(rows))
	for i, t := range rows {
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO adaptation_thresholds (athlete_id, threshold_name, value, sample_size, last_updated)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING version
		`, t.AthleteID.String(), t.Name, t.Value, t.SampleSize, t.LastUpdated).Scan(&t.Version); err != nil {
			return nil, wrap(err, "failed to append threshold %s", t.Name)
		}
		out[i] = t
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap(err, "failed to commit thresholds")
	}
	return out, nil
}

// Snapshot pins the highest version visible now
func (r *ThresholdRepositoryImpl) Snapshot(ctx context.Context, athleteID core.AthleteID) (*calibration.Snapshot, error) {
	var version int64
	if err := r.db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM adaptation_thresholds`); err != nil {
		return nil, wrap(err, "failed to read threshold version")
	}
	return r.SnapshotAt(ctx, athleteID, version)
}

// SnapshotAt returns the newest row per name with version <= version
func (r *ThresholdRepositoryImpl) SnapshotAt(ctx context.Context, athleteID core.AthleteID, version int64) (*calibration.Snapshot, error) {
	var rows []thresholdRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT ON (threshold_name) version, athlete_id, threshold_name, value, sample_size, last_updated
		FROM adaptation_thresholds
		WHERE athlete_id = $1 AND version <= $2
		ORDER BY threshold_name, version DESC
	`, athleteID.String(), version)
	if err != nil {
		return nil, wrap(err, "failed to read thresholds")
	}
	ts := make([]calibration.Threshold, len(rows))
	for i, row := range rows {
		ts[i] = row.threshold()
	}
	snap := calibration.NewSnapshot(athleteID, ts)
	if snap.Version < version {
		snap.Version = version
	}
	return snap, nil
}

// History returns every version of one threshold, oldest first
func (r *ThresholdRepositoryImpl) History(ctx context.Context, athleteID core.AthleteID, name string) ([]calibration.Threshold, error) {
	var rows []thresholdRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT version, athlete_id, threshold_name, value, sample_size, last_updated
		FROM adaptation_thresholds
		WHERE athlete_id = $1 AND threshold_name = $2
		ORDER BY version
	`, athleteID.String(), name)
	if err != nil {
		return nil, wrap(err, "failed to read threshold history")
	}
	out := make([]calibration.Threshold, len(rows))
	for i, row := range rows {
		out[i] = row.threshold()
	}
	return out, nil
}

// CalibrationRepositoryImpl implements the append-only calibration log
type CalibrationRepositoryImpl struct {
	db *sqlx.DB
}

// NewCalibrationRepository creates a new PostgreSQL calibration repository
func NewCalibrationRepository(db *sqlx.DB) ports.CalibrationRepository {
	return &CalibrationRepositoryImpl{db: db}
}

type calibrationRow struct {
	ID              string    `db:"id"`
	AthleteID       string    `db:"athlete_id"`
	Date            time.Time `db:"date"`
	ReadinessScore  float64   `db:"readiness_score"`
	DecisionContext string    `db:"decision_context"`
	Outcome         string    `db:"outcome_label"`
	CreatedAt       time.Time `db:"created_at"`
}

// Append inserts a record; a second record for the same (athlete, date, context) is ignored
func (r *CalibrationRepositoryImpl) Append(ctx context.Context, rec *calibration.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	if rec.ID == "" {
		rec.ID = core.NewRecordID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO calibration_records (id, athlete_id, date, readiness_score, decision_context, outcome_label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (athlete_id, date, decision_context) DO NOTHING
	`, rec.ID.String(), rec.AthleteID.String(), core.DateOf(rec.Date), rec.ReadinessScore, rec.DecisionContext, string(rec.Outcome), rec.CreatedAt)
	if err != nil {
		return false, wrap(err, "failed to append calibration record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err, "failed to read rows affected")
	}
	return n == 1, nil
}

// ListByAthlete returns the athlete's records in insertion order
func (r *CalibrationRepositoryImpl) ListByAthlete(ctx context.Context, athleteID core.AthleteID) ([]calibration.Record, error) {
	var rows []calibrationRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, athlete_id, date, readiness_score, decision_context, outcome_label, created_at
		FROM calibration_records
		WHERE athlete_id = $1
		ORDER BY created_at, id
	`, athleteID.String())
	if err != nil {
		return nil, wrap(err, "failed to list calibration records")
	}
	out := make([]calibration.Record, len(rows))
	for i, row := range rows {
		out[i] = calibration.Record{
			ID:              core.RecordID(row.ID),
			AthleteID:       core.AthleteID(row.AthleteID),
			Date:            core.DateOf(row.Date),
			ReadinessScore:  row.ReadinessScore,
			DecisionContext: row.DecisionContext,
			Outcome:         calibration.OutcomeLabel(row.Outcome),
			CreatedAt:       row.CreatedAt,
		}
	}
	return out, nil
}
