package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"n1core/domain/core"
	"n1core/domain/selfreg"
	"n1core/ports"
)

// SelfRegulationRepositoryImpl implements ports.SelfRegulationRepository for PostgreSQL
type SelfRegulationRepositoryImpl struct {
	db *sqlx.DB
}

// NewSelfRegulationRepository creates a new PostgreSQL self-regulation repository
func NewSelfRegulationRepository(db *sqlx.DB) ports.SelfRegulationRepository {
	return &SelfRegulationRepositoryImpl{db: db}
}

const selfregColumns = `id, athlete_id, date, activity_id, planned_descriptor, actual_descriptor, delta,
	outcome, status, finalized_on, created_at`

// Insert is idempotent on (athlete, activity)
func (r *SelfRegulationRepositoryImpl) Insert(ctx context.Context, rec *selfreg.Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = core.NewRecordID()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO self_regulation_log (`+selfregColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (athlete_id, activity_id) DO NOTHING
	`, rec.ID.String(), rec.AthleteID.String(), core.DateOf(rec.Date), rec.ActivityID.String(),
		jsonb{rec.Planned}, jsonb{rec.Actual}, jsonb{rec.Delta}, outcomeValue(rec.Outcome),
		string(rec.Status), nullDate(rec.FinalizedOn), rec.CreatedAt)
	if err != nil {
		return false, wrap(err, "failed to insert self-regulation record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err, "failed to read rows affected")
	}
	return n == 1, nil
}

func outcomeValue(o *selfreg.Outcome) interface{} {
	if o == nil {
		return nil
	}
	return jsonb{o}
}

func scanSelfReg(rows *sqlx.Rows) ([]*selfreg.Record, error) {
	defer rows.Close()
	var out []*selfreg.Record
	for rows.Next() {
		var rec selfreg.Record
		var id, athlete, activity, status string
		var outcome []byte
		var finalized sql.NullTime
		if err := rows.Scan(&id, &athlete, &rec.Date, &activity, jsonb{&rec.Planned}, jsonb{&rec.Actual},
			jsonb{&rec.Delta}, &outcome, &status, &finalized, &rec.CreatedAt); err != nil {
			return nil, wrap(err, "failed to scan self-regulation record")
		}
		if len(outcome) > 0 {
			rec.Outcome = &selfreg.Outcome{}
			if err := (jsonb{rec.Outcome}).Scan(outcome); err != nil {
				return nil, wrap(err, "failed to decode outcome")
			}
		}
		rec.ID = core.RecordID(id)
		rec.AthleteID = core.AthleteID(athlete)
		rec.ActivityID = core.ActivityID(activity)
		rec.Status = selfreg.Status(status)
		rec.Date = core.DateOf(rec.Date)
		rec.FinalizedOn = datePtr(finalized)
		out = append(out, &rec)
	}
	return out, wrap(rows.Err(), "failed to iterate self-regulation records")
}

// Pending returns records still awaiting an outcome, oldest first
func (r *SelfRegulationRepositoryImpl) Pending(ctx context.Context, athleteID core.AthleteID) ([]*selfreg.Record, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT `+selfregColumns+` FROM self_regulation_log
		WHERE athlete_id = $1 AND status = $2
		ORDER BY date, activity_id
	`, athleteID.String(), string(selfreg.StatusPending))
	if err != nil {
		return nil, wrap(err, "failed to list pending self-regulation records")
	}
	return scanSelfReg(rows)
}

// Finalize writes the outcome only while the stored record is still pending
func (r *SelfRegulationRepositoryImpl) Finalize(ctx context.Context, rec *selfreg.Record) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE self_regulation_log
		SET outcome = $3, status = $4, finalized_on = $5
		WHERE athlete_id = $1 AND activity_id = $2 AND status = 'pending'
	`, rec.AthleteID.String(), rec.ActivityID.String(), outcomeValue(rec.Outcome), string(rec.Status), nullDate(rec.FinalizedOn))
	if err != nil {
		return false, wrap(err, "failed to finalize self-regulation record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err, "failed to read rows affected")
	}
	if n == 1 {
		return true, nil
	}
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM self_regulation_log WHERE athlete_id = $1 AND activity_id = $2)
	`, rec.AthleteID.String(), rec.ActivityID.String()); err != nil {
		return false, wrap(err, "failed to check self-regulation record")
	}
	if !exists {
		return false, core.NewNotFoundError("self_regulation_record", rec.ActivityID.String())
	}
	return false, nil
}

// Range returns records dated in [from, to]
func (r *SelfRegulationRepositoryImpl) Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*selfreg.Record, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT `+selfregColumns+` FROM self_regulation_log
		WHERE athlete_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, activity_id
	`, athleteID.String(), core.DateOf(from), core.DateOf(to))
	if err != nil {
		return nil, wrap(err, "failed to read self-regulation range")
	}
	return scanSelfReg(rows)
}
