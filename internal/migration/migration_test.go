package migration

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCreatesSchemaInOrder(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")

	runner := NewRunner(true)
	for _, s := range runner.steps() {
		mock.ExpectExec(regexp.QuoteMeta(s.sql)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, runner.Run(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSkipsDevTablesInProduction(t *testing.T) {
	names := func(r *MigrationRunner) []string {
		var out []string
		for _, s := range r.steps() {
			out = append(out, s.name)
		}
		return out
	}
	assert.NotContains(t, names(NewRunner(false)), "input_samples")
	assert.Equal(t, []string{"input_samples", "output_samples", "plan_links"}, names(NewRunner(true))[:3])
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS correlation_findings").
		WillReturnError(errors.New("permission denied for schema public"))

	err = NewRunner(false).Run(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correlation_findings")
	assert.NoError(t, mock.ExpectationsWereMet())
}
