package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/domain/calibration"
	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/insight"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
)

var day = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestFindingSaveOnlyOverwritesOlderRuns(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		applied  bool
	}{
		{name: "new or older stored run", affected: 1, applied: true},
		{name: "same or newer stored run", affected: 0, applied: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta(`WHERE correlation_findings.last_run_date < EXCLUDED.last_run_date`)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			f := &correlation.Finding{
				AthleteID:       "ath-1",
				Key:             correlation.Key{Input: signal.SleepHours, Output: signal.EfficiencyFactor, LagDays: 1},
				R:               0.62,
				Confidence:      0.6,
				TimesConfirmed:  1,
				IsActive:        true,
				FirstDetectedOn: day,
				LastConfirmedOn: day,
				LastRunDate:     day,
			}
			applied, err := NewFindingRepository(db).Save(context.Background(), f)
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)
			assert.NotEmpty(t, f.ID, "id assigned before insert")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindingSaveBindsRecordTimestamps(t *testing.T) {
	db, mock := newMock(t)
	created := day.Add(-7*24*time.Hour + 6*time.Hour)
	updated := day.Add(6 * time.Hour)
	f := &correlation.Finding{
		ID:              "f-1",
		AthleteID:       "ath-1",
		Key:             correlation.Key{Input: signal.SleepHours, Output: signal.EfficiencyFactor, LagDays: 1},
		R:               0.62,
		PValue:          0.001,
		PCorrected:      0.008,
		N:               30,
		BaseConfidence:  0.5,
		Confidence:      0.6,
		TimesConfirmed:  2,
		IsActive:        true,
		FirstDetectedOn: day.AddDate(0, 0, -7),
		LastConfirmedOn: day,
		LastRunDate:     day,
		CreatedAt:       created,
		UpdatedAt:       updated,
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO correlation_findings`)).
		WithArgs("f-1", "ath-1", string(signal.SleepHours), string(signal.EfficiencyFactor), 1,
			0.62, 0.001, 0.008, 30, 0.5, 0.6, 2, true,
			day.AddDate(0, 0, -7), day, day, nil, nil, created, updated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := NewFindingRepository(db).Save(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindingMarkSurfacedUnknown(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE correlation_findings SET last_surfaced_at`).
		WithArgs("missing", day).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewFindingRepository(db).MarkSurfaced(context.Background(), "missing", day)
	assert.ErrorIs(t, err, core.ErrFindingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadinessGetAbsent(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM daily_readiness WHERE athlete_id = \$1 AND date = \$2`).
		WithArgs("ath-1", day).
		WillReturnRows(sqlmock.NewRows([]string{"athlete_id", "date", "score", "component_breakdown", "missing_weight_share", "threshold_version", "computed_at"}))

	_, err := NewReadinessRepository(db).Get(context.Background(), "ath-1", day.Add(9*time.Hour))
	assert.ErrorIs(t, err, core.ErrReadinessAbsent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadinessGetDecodesBreakdown(t *testing.T) {
	db, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"athlete_id", "date", "score", "component_breakdown", "missing_weight_share", "threshold_version", "computed_at"}).
		AddRow("ath-1", day, 64.5, []byte(`[{"component":"hrv","contribution":12.5,"available":true}]`), 0.1, int64(3), day.Add(5*time.Hour))
	mock.ExpectQuery(`FROM daily_readiness`).WillReturnRows(rows)

	d, err := NewReadinessRepository(db).Get(context.Background(), "ath-1", day)
	require.NoError(t, err)
	assert.Equal(t, 64.5, d.Score)
	assert.Equal(t, int64(3), d.ThresholdVersion)
	require.Len(t, d.Breakdown, 1)
	assert.Equal(t, 12.5, d.Breakdown[0].Contribution)
}

func TestCalibrationAppendIgnoresDuplicates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCalibrationRepository(db)
	rec := func() *calibration.Record {
		return &calibration.Record{
			AthleteID:       "ath-1",
			Date:            day,
			ReadinessScore:  48,
			DecisionContext: selfreg.ContextQuality,
			Outcome:         calibration.OutcomeStruggled,
		}
	}
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (athlete_id, date, decision_context) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (athlete_id, date, decision_context) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Append(context.Background(), rec())
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = repo.Append(context.Background(), rec())
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalibrationAppendValidatesBeforeWriting(t *testing.T) {
	db, mock := newMock(t)
	_, err := NewCalibrationRepository(db).Append(context.Background(), &calibration.Record{AthleteID: "ath-1", DecisionContext: "x", Outcome: "great"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outcome_label")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelfRegulationFinalize(t *testing.T) {
	rec := &selfreg.Record{AthleteID: "ath-1", ActivityID: "act-9", Status: selfreg.StatusExpired, FinalizedOn: &day}

	t.Run("pending record", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE self_regulation_log`).WillReturnResult(sqlmock.NewResult(0, 1))
		ok, err := NewSelfRegulationRepository(db).Finalize(context.Background(), rec)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already final", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE self_regulation_log`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs("ath-1", "act-9").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		ok, err := NewSelfRegulationRepository(db).Finalize(context.Background(), rec)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown activity", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE self_regulation_log`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		_, err := NewSelfRegulationRepository(db).Finalize(context.Background(), rec)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

var insightCols = []string{
	"id", "athlete_id", "date", "rule_id", "subject", "mode", "action", "metric", "direction", "message_key",
	"cited_data", "confidence", "sustained_days", "supersedes", "athlete_response", "responded_at", "created_at",
}

func TestInsightSetResponse(t *testing.T) {
	at := day.Add(20 * time.Hour)

	t.Run("first response", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE insight_log SET athlete_response`).
			WithArgs("ins-1", "acknowledged", at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		err := NewInsightRepository(db).SetResponse(context.Background(), "ins-1", insight.ResponseAcknowledged, at)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second response", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE insight_log`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM insight_log WHERE id = \$1`).WithArgs("ins-1").
			WillReturnRows(sqlmock.NewRows(insightCols).AddRow(
				"ins-1", "ath-1", day, "readiness_context", "readiness", "inform", "none", "", "", "readiness.low",
				[]byte(`{"score":41}`), 0.7, 0, nil, "dismissed", at, at))
		err := NewInsightRepository(db).SetResponse(context.Background(), "ins-1", insight.ResponseActed, at)
		assert.ErrorIs(t, err, core.ErrResponseAlreadySet)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown insight", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE insight_log`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM insight_log WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(insightCols))
		err := NewInsightRepository(db).SetResponse(context.Background(), "nope", insight.ResponseActed, at)
		assert.ErrorIs(t, err, core.ErrInsightNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInsightLatest(t *testing.T) {
	db, mock := newMock(t)
	repo := NewInsightRepository(db)
	mock.ExpectQuery(`date < \$4`).
		WithArgs("ath-1", "load_spike", "atl", day).
		WillReturnRows(sqlmock.NewRows(insightCols))

	rec, err := repo.Latest(context.Background(), "ath-1", "load_spike", "atl", day.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, rec)

	prev := day.AddDate(0, 0, -2)
	mock.ExpectQuery(`date < \$4`).
		WillReturnRows(sqlmock.NewRows(insightCols).AddRow(
			"ins-7", "ath-1", prev, "load_spike", "atl", "suggest", "consider_adjustment", "atl", "up", "load.spike",
			[]byte(`{"ratio":1.4}`), 0.8, 0, "ins-3", nil, nil, prev))
	rec, err = repo.Latest(context.Background(), "ath-1", "load_spike", "atl", day)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, insight.ModeSuggest, rec.Mode)
	assert.Equal(t, 1.4, rec.CitedData["ratio"])
	require.NotNil(t, rec.Supersedes)
	assert.Equal(t, core.InsightID("ins-3"), *rec.Supersedes)
	assert.Nil(t, rec.AthleteResponse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleStateGetAbsent(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM rule_state`).WithArgs("ath-1", "sustained_low_readiness").
		WillReturnRows(sqlmock.NewRows([]string{"athlete_id", "rule_id", "mode", "prev_mode", "updated_on", "streak_start", "acknowledged_on"}))

	st, err := NewRuleStateRepository(db).Get(context.Background(), "ath-1", "sustained_low_readiness")
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInputSamplesKeepsMissingValues(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM input_samples`).
		WithArgs("ath-1", day.AddDate(0, 0, -1), day, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"athlete_id", "signal", "date", "value"}).
			AddRow("ath-1", "sleep_hours", day.AddDate(0, 0, -1), 7.1).
			AddRow("ath-1", "soreness", day, nil))

	samples, err := NewSampleRepository(db).InputSamples(context.Background(), "ath-1", day.AddDate(0, 0, -1), day)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 7.1, *samples[0].Value)
	assert.Nil(t, samples[1].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}
