package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"n1core/domain/core"
	"n1core/domain/insight"
	"n1core/domain/signal"
	"n1core/ports"
)

// InsightRepositoryImpl implements the append-only insight log for PostgreSQL
type InsightRepositoryImpl struct {
	db *sqlx.DB
}

// NewInsightRepository creates a new PostgreSQL insight repository
func NewInsightRepository(db *sqlx.DB) ports.InsightRepository {
	return &InsightRepositoryImpl{db: db}
}

const insightColumns = `id, athlete_id, date, rule_id, subject, mode, action, metric, direction, message_key,
	cited_data, confidence, sustained_days, supersedes, athlete_response, responded_at, created_at`

type insightRow struct {
	ID              string         `db:"id"`
	AthleteID       string         `db:"athlete_id"`
	Date            time.Time      `db:"date"`
	RuleID          string         `db:"rule_id"`
	Subject         string         `db:"subject"`
	Mode            string         `db:"mode"`
	Action          string         `db:"action"`
	Metric          string         `db:"metric"`
	Direction       string         `db:"direction"`
	MessageKey      string         `db:"message_key"`
	CitedData       []byte         `db:"cited_data"`
	Confidence      float64        `db:"confidence"`
	SustainedDays   int            `db:"sustained_days"`
	Supersedes      sql.NullString `db:"supersedes"`
	AthleteResponse sql.NullString `db:"athlete_response"`
	RespondedAt     sql.NullTime   `db:"responded_at"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (row insightRow) record() (*insight.Record, error) {
	rec := &insight.Record{
		ID:            core.InsightID(row.ID),
		AthleteID:     core.AthleteID(row.AthleteID),
		Date:          core.DateOf(row.Date),
		RuleID:        core.RuleID(row.RuleID),
		Subject:       row.Subject,
		Mode:          insight.Mode(row.Mode),
		Action:        insight.Action(row.Action),
		Metric:        signal.Name(row.Metric),
		Direction:     insight.Direction(row.Direction),
		MessageKey:    row.MessageKey,
		Confidence:    row.Confidence,
		SustainedDays: row.SustainedDays,
		CreatedAt:     row.CreatedAt,
	}
	if err := (jsonb{&rec.CitedData}).Scan(row.CitedData); err != nil {
		return nil, err
	}
	if row.Supersedes.Valid {
		id := core.InsightID(row.Supersedes.String)
		rec.Supersedes = &id
	}
	if row.AthleteResponse.Valid {
		resp := insight.Response(row.AthleteResponse.String)
		rec.AthleteResponse = &resp
	}
	if row.RespondedAt.Valid {
		at := row.RespondedAt.Time
		rec.RespondedAt = &at
	}
	return rec, nil
}

func (r *InsightRepositoryImpl) selectRecords(ctx context.Context, query string, args ...interface{}) ([]*insight.Record, error) {
	var rows []insightRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrap(err, "failed to read insights")
	}
	out := make([]*insight.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, wrap(err, "failed to decode insight %s", row.ID)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Insert ignores a second insight for the same (athlete, rule, date, subject)
func (r *InsightRepositoryImpl) Insert(ctx context.Context, rec *insight.Record) (bool, error) {
	if core.ID(rec.ID).IsEmpty() {
		rec.ID = core.NewInsightID()
	}
	var supersedes string
	if rec.Supersedes != nil {
		supersedes = rec.Supersedes.String()
	}
	cited := rec.CitedData
	if cited == nil {
		cited = map[string]any{}
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO insight_log (`+insightColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULL, NULL, $15)
		ON CONFLICT (athlete_id, rule_id, date, subject) DO NOTHING
	`, rec.ID.String(), rec.AthleteID.String(), core.DateOf(rec.Date), rec.RuleID.String(), rec.Subject,
		string(rec.Mode), string(rec.Action), string(rec.Metric), string(rec.Direction), rec.MessageKey,
		jsonb{cited}, rec.Confidence, rec.SustainedDays, nullString(supersedes), rec.CreatedAt)
	if err != nil {
		return false, wrap(err, "failed to insert insight %s/%s", rec.RuleID, rec.Subject)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err, "failed to read rows affected")
	}
	return n == 1, nil
}

// Get returns one insight by id
func (r *InsightRepositoryImpl) Get(ctx context.Context, id core.InsightID) (*insight.Record, error) {
	recs, err := r.selectRecords(ctx, `SELECT `+insightColumns+` FROM insight_log WHERE id = $1`, id.String())
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, core.ErrInsightNotFound
	}
	return recs[0], nil
}

// ListByDate returns the insights stored for one day
func (r *InsightRepositoryImpl) ListByDate(ctx context.Context, athleteID core.AthleteID, date time.Time) ([]*insight.Record, error) {
	return r.Range(ctx, athleteID, date, date)
}

// Range returns insights dated in [from, to]
func (r *InsightRepositoryImpl) Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*insight.Record, error) {
	return r.selectRecords(ctx, `
		SELECT `+insightColumns+` FROM insight_log
		WHERE athlete_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, created_at, id
	`, athleteID.String(), core.DateOf(from), core.DateOf(to))
}

// Latest returns the newest insight for (rule, subject) dated strictly before the given day
func (r *InsightRepositoryImpl) Latest(ctx context.Context, athleteID core.AthleteID, ruleID core.RuleID, subject string, before time.Time) (*insight.Record, error) {
	recs, err := r.selectRecords(ctx, `
		SELECT `+insightColumns+` FROM insight_log
		WHERE athlete_id = $1 AND rule_id = $2 AND subject = $3 AND date < $4
		ORDER BY date DESC
		LIMIT 1
	`, athleteID.String(), ruleID.String(), subject, core.DateOf(before))
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// SetResponse attaches the athlete response once
func (r *InsightRepositoryImpl) SetResponse(ctx context.Context, id core.InsightID, resp insight.Response, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE insight_log SET athlete_response = $2, responded_at = $3
		WHERE id = $1 AND athlete_response IS NULL
	`, id.String(), string(resp), at)
	if err != nil {
		return wrap(err, "failed to set response on insight %s", id)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return core.ErrResponseAlreadySet
}

// RuleStateRepositoryImpl implements ports.RuleStateRepository for PostgreSQL
type RuleStateRepositoryImpl struct {
	db *sqlx.DB
}

// NewRuleStateRepository creates a new PostgreSQL rule state repository
func NewRuleStateRepository(db *sqlx.DB) ports.RuleStateRepository {
	return &RuleStateRepositoryImpl{db: db}
}

type ruleStateRow struct {
	AthleteID      string       `db:"athlete_id"`
	RuleID         string       `db:"rule_id"`
	Mode           string       `db:"mode"`
	PrevMode       string       `db:"prev_mode"`
	UpdatedOn      time.Time    `db:"updated_on"`
	StreakStart    sql.NullTime `db:"streak_start"`
	AcknowledgedOn sql.NullTime `db:"acknowledged_on"`
}

// Get returns the state, or nil when the rule has never run for the athlete
func (r *RuleStateRepositoryImpl) Get(ctx context.Context, athleteID core.AthleteID, ruleID core.RuleID) (*insight.RuleState, error) {
	var row ruleStateRow
	err := r.db.GetContext(ctx, &row, `
		SELECT athlete_id, rule_id, mode, prev_mode, updated_on, streak_start, acknowledged_on
		FROM rule_state WHERE athlete_id = $1 AND rule_id = $2
	`, athleteID.String(), ruleID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "failed to get rule state %s", ruleID)
	}
	return &insight.RuleState{
		AthleteID:      core.AthleteID(row.AthleteID),
		RuleID:         core.RuleID(row.RuleID),
		Mode:           insight.Mode(row.Mode),
		PrevMode:       insight.Mode(row.PrevMode),
		UpdatedOn:      core.DateOf(row.UpdatedOn),
		StreakStart:    datePtr(row.StreakStart),
		AcknowledgedOn: datePtr(row.AcknowledgedOn),
	}, nil
}

// Save upserts the state
func (r *RuleStateRepositoryImpl) Save(ctx context.Context, s *insight.RuleState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rule_state (athlete_id, rule_id, mode, prev_mode, updated_on, streak_start, acknowledged_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (athlete_id, rule_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			prev_mode = EXCLUDED.prev_mode,
			updated_on = EXCLUDED.updated_on,
			streak_start = EXCLUDED.streak_start,
			acknowledged_on = EXCLUDED.acknowledged_on
	`, s.AthleteID.String(), s.RuleID.String(), string(s.Mode), string(s.PrevMode), core.DateOf(s.UpdatedOn),
		nullDate(s.StreakStart), nullDate(s.AcknowledgedOn))
	return wrap(err, "failed to save rule state %s", s.RuleID)
}
