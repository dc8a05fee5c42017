package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"n1core/domain/core"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
)

// SampleRepositoryImpl reads the ingestion-owned sample and plan-link tables
type SampleRepositoryImpl struct {
	db *sqlx.DB
}

// NewSampleRepository creates a new PostgreSQL sample reader
func NewSampleRepository(db *sqlx.DB) *SampleRepositoryImpl {
	return &SampleRepositoryImpl{db: db}
}

type inputRow struct {
	AthleteID string          `db:"athlete_id"`
	Signal    string          `db:"signal"`
	Date      time.Time       `db:"date"`
	Value     sql.NullFloat64 `db:"value"`
}

type outputRow struct {
	AthleteID  string          `db:"athlete_id"`
	Metric     string          `db:"metric"`
	Date       time.Time       `db:"date"`
	ActivityID string          `db:"activity_id"`
	Value      sql.NullFloat64 `db:"value"`
}

func names(ns []signal.Name) pq.StringArray {
	out := make(pq.StringArray, len(ns))
	for i, n := range ns {
		out[i] = string(n)
	}
	return out
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// InputSamples returns the registered daily inputs in [from, to]
func (r *SampleRepositoryImpl) InputSamples(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]signal.InputSample, error) {
	var rows []inputRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT athlete_id, signal, date, value
		FROM input_samples
		WHERE athlete_id = $1 AND date BETWEEN $2 AND $3 AND signal = ANY($4)
		ORDER BY date, signal
	`, athleteID.String(), core.DateOf(from), core.DateOf(to), names(signal.RegisteredInputs))
	if err != nil {
		return nil, wrap(err, "failed to read input samples")
	}
	out := make([]signal.InputSample, len(rows))
	for i, row := range rows {
		out[i] = signal.InputSample{
			AthleteID: core.AthleteID(row.AthleteID),
			Signal:    signal.Name(row.Signal),
			Date:      core.DateOf(row.Date),
			Value:     nullFloat(row.Value),
		}
	}
	return out, nil
}

// OutputSamples returns the per-activity outputs in [from, to]
func (r *SampleRepositoryImpl) OutputSamples(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]signal.OutputSample, error) {
	var rows []outputRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT athlete_id, metric, date, activity_id, value
		FROM output_samples
		WHERE athlete_id = $1 AND date BETWEEN $2 AND $3 AND metric = ANY($4)
		ORDER BY date, metric, activity_id
	`, athleteID.String(), core.DateOf(from), core.DateOf(to), names(signal.RegisteredOutputs))
	if err != nil {
		return nil, wrap(err, "failed to read output samples")
	}
	out := make([]signal.OutputSample, len(rows))
	for i, row := range rows {
		out[i] = signal.OutputSample{
			AthleteID:  core.AthleteID(row.AthleteID),
			Metric:     signal.Name(row.Metric),
			Date:       core.DateOf(row.Date),
			ActivityID: core.ActivityID(row.ActivityID),
			Value:      nullFloat(row.Value),
		}
	}
	return out, nil
}

// PlanLinks returns planned-vs-actual links in [from, to]
func (r *SampleRepositoryImpl) PlanLinks(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]selfreg.PlanLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT athlete_id, date, activity_id, planned, actual, completed
		FROM plan_links
		WHERE athlete_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, activity_id
	`, athleteID.String(), core.DateOf(from), core.DateOf(to))
	if err != nil {
		return nil, wrap(err, "failed to read plan links")
	}
	defer rows.Close()

	var out []selfreg.PlanLink
	for rows.Next() {
		var l selfreg.PlanLink
		var athlete, activity string
		if err := rows.Scan(&athlete, &l.Date, &activity, jsonb{&l.Planned}, jsonb{&l.Actual}, &l.Completed); err != nil {
			return nil, wrap(err, "failed to scan plan link")
		}
		l.AthleteID = core.AthleteID(athlete)
		l.ActivityID = core.ActivityID(activity)
		l.Date = core.DateOf(l.Date)
		out = append(out, l)
	}
	return out, wrap(rows.Err(), "failed to iterate plan links")
}

// ActiveAthletes lists every athlete with samples in the last 90 days
func (r *SampleRepositoryImpl) ActiveAthletes(ctx context.Context) ([]core.AthleteID, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT athlete_id FROM input_samples
		WHERE date >= CURRENT_DATE - INTERVAL '90 days'
		ORDER BY athlete_id
	`)
	if err != nil {
		return nil, wrap(err, "failed to list active athletes")
	}
	out := make([]core.AthleteID, len(ids))
	for i, id := range ids {
		out[i] = core.AthleteID(id)
	}
	return out, nil
}
