package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"n1core/domain/core"
	"n1core/domain/readiness"
	"n1core/ports"
)

// ReadinessRepositoryImpl implements ports.ReadinessRepository for PostgreSQL
type ReadinessRepositoryImpl struct {
	db *sqlx.DB
}

// NewReadinessRepository creates a new PostgreSQL readiness repository
func NewReadinessRepository(db *sqlx.DB) ports.ReadinessRepository {
	return &ReadinessRepositoryImpl{db: db}
}

const readinessColumns = `athlete_id, date, score, component_breakdown, missing_weight_share, threshold_version, computed_at`

// Upsert writes the score for (athlete, date), replacing an earlier computation
func (r *ReadinessRepositoryImpl) Upsert(ctx context.Context, d *readiness.DailyReadiness) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_readiness (`+readinessColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (athlete_id, date) DO UPDATE SET
			score = EXCLUDED.score,
			component_breakdown = EXCLUDED.component_breakdown,
			missing_weight_share = EXCLUDED.missing_weight_share,
			threshold_version = EXCLUDED.threshold_version,
			computed_at = EXCLUDED.computed_at
	`, d.AthleteID.String(), core.DateOf(d.Date), d.Score, jsonb{d.Breakdown}, d.MissingWeightShare, d.ThresholdVersion, d.ComputedAt)
	return wrap(err, "failed to upsert readiness for %s", core.DateKey(d.Date))
}

func scanReadiness(row interface{ Scan(...interface{}) error }) (*readiness.DailyReadiness, error) {
	var d readiness.DailyReadiness
	var athlete string
	if err := row.Scan(&athlete, &d.Date, &d.Score, jsonb{&d.Breakdown}, &d.MissingWeightShare, &d.ThresholdVersion, &d.ComputedAt); err != nil {
		return nil, err
	}
	d.AthleteID = core.AthleteID(athlete)
	d.Date = core.DateOf(d.Date)
	return &d, nil
}

// Get returns the score for one day
func (r *ReadinessRepositoryImpl) Get(ctx context.Context, athleteID core.AthleteID, date time.Time) (*readiness.DailyReadiness, error) {
	row := r.db.QueryRowxContext(ctx, `
		SELECT `+readinessColumns+` FROM daily_readiness WHERE athlete_id = $1 AND date = $2
	`, athleteID.String(), core.DateOf(date))
	d, err := scanReadiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrReadinessAbsent
	}
	if err != nil {
		return nil, wrap(err, "failed to get readiness for %s", core.DateKey(date))
	}
	return d, nil
}

// Range returns stored scores in [from, to], oldest first
func (r *ReadinessRepositoryImpl) Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*readiness.DailyReadiness, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT `+readinessColumns+` FROM daily_readiness
		WHERE athlete_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, athleteID.String(), core.DateOf(from), core.DateOf(to))
	if err != nil {
		return nil, wrap(err, "failed to read readiness range")
	}
	defer rows.Close()

	var out []*readiness.DailyReadiness
	for rows.Next() {
		d, err := scanReadiness(rows)
		if err != nil {
			return nil, wrap(err, "failed to scan readiness")
		}
		out = append(out, d)
	}
	return out, wrap(rows.Err(), "failed to iterate readiness")
}
