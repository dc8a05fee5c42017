package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/signal"
	"n1core/ports"
)

// FindingRepositoryImpl implements ports.FindingRepository for PostgreSQL
type FindingRepositoryImpl struct {
	db *sqlx.DB
}

// NewFindingRepository creates a new PostgreSQL finding repository
func NewFindingRepository(db *sqlx.DB) ports.FindingRepository {
	return &FindingRepositoryImpl{db: db}
}

const findingColumns = `id, athlete_id, input_signal, output_metric, lag_days, r, p_value, p_corrected,
	n_pairs, base_confidence, confidence, times_confirmed, is_active, first_detected_on,
	last_confirmed_on, last_run_date, deactivated_on, last_surfaced_at, created_at, updated_at`

type findingRow struct {
	ID              string       `db:"id"`
	AthleteID       string       `db:"athlete_id"`
	Input           string       `db:"input_signal"`
	Output          string       `db:"output_metric"`
	LagDays         int          `db:"lag_days"`
	R               float64      `db:"r"`
	PValue          float64      `db:"p_value"`
	PCorrected      float64      `db:"p_corrected"`
	N               int          `db:"n_pairs"`
	BaseConfidence  float64      `db:"base_confidence"`
	Confidence      float64      `db:"confidence"`
	TimesConfirmed  int          `db:"times_confirmed"`
	IsActive        bool         `db:"is_active"`
	FirstDetectedOn time.Time    `db:"first_detected_on"`
	LastConfirmedOn time.Time    `db:"last_confirmed_on"`
	LastRunDate     time.Time    `db:"last_run_date"`
	DeactivatedOn   sql.NullTime `db:"deactivated_on"`
	LastSurfacedAt  sql.NullTime `db:"last_surfaced_at"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (row findingRow) finding() *correlation.Finding {
	return &correlation.Finding{
		ID:        core.FindingID(row.ID),
		AthleteID: core.AthleteID(row.AthleteID),
		Key: correlation.Key{
			Input:   signal.Name(row.Input),
			Output:  signal.Name(row.Output),
			LagDays: row.LagDays,
		},
		R:               row.R,
		PValue:          row.PValue,
		PCorrected:      row.PCorrected,
		N:               row.N,
		BaseConfidence:  row.BaseConfidence,
		Confidence:      row.Confidence,
		TimesConfirmed:  row.TimesConfirmed,
		IsActive:        row.IsActive,
		FirstDetectedOn: core.DateOf(row.FirstDetectedOn),
		LastConfirmedOn: core.DateOf(row.LastConfirmedOn),
		LastRunDate:     core.DateOf(row.LastRunDate),
		DeactivatedOn:   datePtr(row.DeactivatedOn),
		LastSurfacedAt:  datePtr(row.LastSurfacedAt),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

// Get retrieves a finding by its natural key
func (r *FindingRepositoryImpl) Get(ctx context.Context, athleteID core.AthleteID, key correlation.Key) (*correlation.Finding, error) {
	var row findingRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+findingColumns+`
		FROM correlation_findings
		WHERE athlete_id = $1 AND input_signal = $2 AND output_metric = $3 AND lag_days = $4
	`, athleteID.String(), string(key.Input), string(key.Output), key.LagDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrFindingNotFound
	}
	if err != nil {
		return nil, wrap(err, "failed to get finding %s", key)
	}
	return row.finding(), nil
}

// GetByID retrieves a finding by id
func (r *FindingRepositoryImpl) GetByID(ctx context.Context, id core.FindingID) (*correlation.Finding, error) {
	var row findingRow
	err := r.db.GetContext(ctx, &row, `SELECT `+findingColumns+` FROM correlation_findings WHERE id = $1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrFindingNotFound
	}
	if err != nil {
		return nil, wrap(err, "failed to get finding %s", id)
	}
	return row.finding(), nil
}

// ListByAthlete returns an athlete's findings ordered by key
func (r *FindingRepositoryImpl) ListByAthlete(ctx context.Context, athleteID core.AthleteID, activeOnly bool) ([]*correlation.Finding, error) {
	var rows []findingRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+findingColumns+`
		FROM correlation_findings
		WHERE athlete_id = $1 AND (is_active OR NOT $2)
		ORDER BY input_signal, output_metric, lag_days
	`, athleteID.String(), activeOnly)
	if err != nil {
		return nil, wrap(err, "failed to list findings")
	}
	out := make([]*correlation.Finding, len(rows))
	for i, row := range rows {
		out[i] = row.finding()
	}
	return out, nil
}

// Save inserts a finding or overwrites it when the stored last_run_date is strictly
// earlier. Identity, first detection and created_at never change on update. Timestamps
// are taken from f.
func (r *FindingRepositoryImpl) Save(ctx context.Context, f *correlation.Finding) (bool, error) {
	if core.ID(f.ID).IsEmpty() {
		f.ID = core.NewFindingID()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO correlation_findings (`+findingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (athlete_id, input_signal, output_metric, lag_days) DO UPDATE SET
			r = EXCLUDED.r,
			p_value = EXCLUDED.p_value,
			p_corrected = EXCLUDED.p_corrected,
			n_pairs = EXCLUDED.n_pairs,
			base_confidence = EXCLUDED.base_confidence,
			confidence = EXCLUDED.confidence,
			times_confirmed = EXCLUDED.times_confirmed,
			is_active = EXCLUDED.is_active,
			last_confirmed_on = EXCLUDED.last_confirmed_on,
			last_run_date = EXCLUDED.last_run_date,
			deactivated_on = EXCLUDED.deactivated_on,
			last_surfaced_at = EXCLUDED.last_surfaced_at,
			updated_at = EXCLUDED.updated_at
		WHERE correlation_findings.last_run_date < EXCLUDED.last_run_date
	`,
		f.ID.String(), f.AthleteID.String(), string(f.Key.Input), string(f.Key.Output), f.Key.LagDays,
		f.R, f.PValue, f.PCorrected, f.N, f.BaseConfidence, f.Confidence, f.TimesConfirmed, f.IsActive,
		core.DateOf(f.FirstDetectedOn), core.DateOf(f.LastConfirmedOn), core.DateOf(f.LastRunDate),
		nullDate(f.DeactivatedOn), nullDate(f.LastSurfacedAt), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return false, wrap(err, "failed to save finding %s", f.Key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err, "failed to read rows affected")
	}
	return n == 1, nil
}

// MarkSurfaced sets last_surfaced_at
func (r *FindingRepositoryImpl) MarkSurfaced(ctx context.Context, id core.FindingID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE correlation_findings SET last_surfaced_at = $2, updated_at = NOW() WHERE id = $1
	`, id.String(), core.DateOf(at))
	if err != nil {
		return wrap(err, "failed to mark finding %s surfaced", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrFindingNotFound
	}
	return nil
}
