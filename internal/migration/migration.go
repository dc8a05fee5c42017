package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"n1core/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the schema. Every statement is idempotent so Run may be
// repeated on every deploy.
type MigrationRunner struct {
	version string
	dev     bool
}

// NewRunner creates a new migration runner. dev also creates the sample and plan-link
// tables that ingestion owns in production.
func NewRunner(dev bool) *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
		dev:     dev,
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

type step struct {
	name string
	sql  string
}

// steps returns the statements Run executes, in order
func (r *MigrationRunner) steps() []step {
	steps := []step{
		{"correlation_findings", createFindings},
		{"daily_readiness", createReadiness},
		{"adaptation_thresholds", createThresholds},
		{"calibration_records", createCalibrationRecords},
		{"self_regulation_log", createSelfRegulation},
		{"insight_log", createInsightLog},
		{"rule_state", createRuleState},
		{"indexes", createIndexes},
	}
	if r.dev {
		steps = append([]step{
			{"input_samples", createInputSamples},
			{"output_samples", createOutputSamples},
			{"plan_links", createPlanLinks},
		}, steps...)
	}
	return steps
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, s := range r.steps() {
		if _, err := db.ExecContext(ctx, s.sql); err != nil {
			return errors.Wrapf(err, "failed to create %s", s.name)
		}
	}
	return nil
}

const createInputSamples = `
	CREATE TABLE IF NOT EXISTS input_samples (
		athlete_id TEXT NOT NULL,
		signal TEXT NOT NULL,
		date DATE NOT NULL,
		value DOUBLE PRECISION,
		PRIMARY KEY (athlete_id, signal, date)
	)`

const createOutputSamples = `
	CREATE TABLE IF NOT EXISTS output_samples (
		athlete_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		date DATE NOT NULL,
		activity_id TEXT NOT NULL DEFAULT '',
		value DOUBLE PRECISION,
		PRIMARY KEY (athlete_id, metric, date, activity_id)
	)`

const createPlanLinks = `
	CREATE TABLE IF NOT EXISTS plan_links (
		athlete_id TEXT NOT NULL,
		date DATE NOT NULL,
		activity_id TEXT NOT NULL,
		planned JSONB NOT NULL,
		actual JSONB NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT false,
		PRIMARY KEY (athlete_id, date, activity_id)
	)`

const createFindings = `
	CREATE TABLE IF NOT EXISTS correlation_findings (
		id TEXT PRIMARY KEY,
		athlete_id TEXT NOT NULL,
		input_signal TEXT NOT NULL,
		output_metric TEXT NOT NULL,
		lag_days INTEGER NOT NULL CHECK (lag_days BETWEEN 0 AND 14),
		r DOUBLE PRECISION NOT NULL,
		p_value DOUBLE PRECISION NOT NULL,
		p_corrected DOUBLE PRECISION NOT NULL,
		n_pairs INTEGER NOT NULL,
		base_confidence DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION NOT NULL CHECK (confidence BETWEEN 0 AND 1),
		times_confirmed INTEGER NOT NULL CHECK (times_confirmed >= 1),
		is_active BOOLEAN NOT NULL DEFAULT true,
		first_detected_on DATE NOT NULL,
		last_confirmed_on DATE NOT NULL,
		last_run_date DATE NOT NULL,
		deactivated_on DATE,
		last_surfaced_at DATE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (athlete_id, input_signal, output_metric, lag_days)
	)`

const createReadiness = `
	CREATE TABLE IF NOT EXISTS daily_readiness (
		athlete_id TEXT NOT NULL,
		date DATE NOT NULL,
		score DOUBLE PRECISION NOT NULL CHECK (score BETWEEN 0 AND 100),
		component_breakdown JSONB NOT NULL,
		missing_weight_share DOUBLE PRECISION NOT NULL,
		threshold_version BIGINT NOT NULL,
		computed_at TIMESTAMP WITH TIME ZONE NOT NULL,
		PRIMARY KEY (athlete_id, date)
	)`

const createThresholds = `
	CREATE TABLE IF NOT EXISTS adaptation_thresholds (
		version BIGSERIAL PRIMARY KEY,
		athlete_id TEXT NOT NULL,
		threshold_name TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		sample_size INTEGER NOT NULL,
		last_updated TIMESTAMP WITH TIME ZONE NOT NULL
	)`

const createCalibrationRecords = `
	CREATE TABLE IF NOT EXISTS calibration_records (
		id TEXT PRIMARY KEY,
		athlete_id TEXT NOT NULL,
		date DATE NOT NULL,
		readiness_score DOUBLE PRECISION NOT NULL,
		decision_context TEXT NOT NULL,
		outcome_label TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (athlete_id, date, decision_context)
	)`

const createSelfRegulation = `
	CREATE TABLE IF NOT EXISTS self_regulation_log (
		id TEXT PRIMARY KEY,
		athlete_id TEXT NOT NULL,
		date DATE NOT NULL,
		activity_id TEXT NOT NULL,
		planned_descriptor JSONB NOT NULL,
		actual_descriptor JSONB NOT NULL,
		delta JSONB NOT NULL,
		outcome JSONB,
		status TEXT NOT NULL,
		finalized_on DATE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (athlete_id, activity_id)
	)`

const createInsightLog = `
	CREATE TABLE IF NOT EXISTS insight_log (
		id TEXT PRIMARY KEY,
		athlete_id TEXT NOT NULL,
		date DATE NOT NULL,
		rule_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		mode TEXT NOT NULL,
		action TEXT NOT NULL,
		metric TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL DEFAULT '',
		message_key TEXT NOT NULL,
		cited_data JSONB NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		sustained_days INTEGER NOT NULL DEFAULT 0,
		supersedes TEXT,
		athlete_response TEXT,
		responded_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (athlete_id, rule_id, date, subject)
	)`

const createRuleState = `
	CREATE TABLE IF NOT EXISTS rule_state (
		athlete_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		prev_mode TEXT NOT NULL DEFAULT '',
		updated_on DATE NOT NULL,
		streak_start DATE,
		acknowledged_on DATE,
		PRIMARY KEY (athlete_id, rule_id)
	)`

const createIndexes = `
	CREATE INDEX IF NOT EXISTS idx_findings_athlete_active ON correlation_findings(athlete_id, is_active);
	CREATE INDEX IF NOT EXISTS idx_thresholds_athlete_name ON adaptation_thresholds(athlete_id, threshold_name, version DESC);
	CREATE INDEX IF NOT EXISTS idx_selfreg_pending ON self_regulation_log(athlete_id, status);
	CREATE INDEX IF NOT EXISTS idx_insights_athlete_date ON insight_log(athlete_id, date);
	CREATE INDEX IF NOT EXISTS idx_insights_subject ON insight_log(athlete_id, rule_id, subject, date DESC)`
