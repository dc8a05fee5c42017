package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"n1core/adapters/excel"
	"n1core/domain/core"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"STORE":         "memory",
		"DATABASE_URL":  "",
		"REDIS_ADDR":    "",
		"KAFKA_BROKERS": "",
		"NARRATOR_URL":  "",
		"FLAGS_FILE":    "",
		"POLARITY_FILE": "",
	} {
		t.Setenv(k, v)
	}
}

// execute runs the root command with fresh flag values
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestParseDateFlag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "date", input: "2026-06-01", want: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{name: "empty is today", input: "", want: core.DateOf(time.Now())},
		{name: "wrong layout", input: "01/06/2026", wantErr: true},
		{name: "not a date", input: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDateFlag(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestSimulateSynthetic(t *testing.T) {
	memoryEnv(t)
	out, err := execute(t, "simulate", "--days", "50", "--seed", "3", "--replay", "5", "--athlete", "sim-x")
	require.NoError(t, err)

	assert.Contains(t, out, "athlete sim-x")
	assert.Contains(t, out, "readiness ")
	assert.Contains(t, out, "insights")
}

func TestSimulateFromCSV(t *testing.T) {
	memoryEnv(t)
	var b strings.Builder
	b.WriteString("athlete_id,date,name,value,activity_id\n")
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		day := core.DateKey(core.AddDays(start, i))
		b.WriteString("csv-1," + day + ",hrv_rmssd,62,\n")
	}
	path := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	out, err := execute(t, "simulate", "--from", path, "--replay", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "athlete csv-1  2026-05-05")
}

func TestSimulateRejectsBadReplay(t *testing.T) {
	memoryEnv(t)
	_, err := execute(t, "simulate", "--replay", "0")
	assert.Error(t, err)
}

func TestExportWritesWorkbook(t *testing.T) {
	memoryEnv(t)
	path := filepath.Join(t.TempDir(), "a.xlsx")

	out, err := execute(t, "export", "--athlete", "a-1", "--out", path, "--date", "2026-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{excel.SheetFindings, excel.SheetReadiness, excel.SheetComponents, excel.SheetInsights}, f.GetSheetList())
}

func TestExportRequiresFlags(t *testing.T) {
	memoryEnv(t)
	_, err := execute(t, "export", "--athlete", "a-1")
	assert.Error(t, err)
}

func TestMigrateNeedsPostgres(t *testing.T) {
	memoryEnv(t)
	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE=postgres")
}

func TestRunOverEmptyMemoryStore(t *testing.T) {
	memoryEnv(t)
	out, err := execute(t, "run", "--date", "2026-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, `"run_date": "2026-06-01"`)
}
