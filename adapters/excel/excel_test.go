package excel

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"n1core/domain/correlation"
	"n1core/domain/insight"
	"n1core/domain/readiness"
	"n1core/domain/signal"
	"n1core/internal"
)

var day = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func TestReadSamplesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	data := "athlete_id,date,name,activity_id,value\n" +
		"ath-1,2026-05-04,sleep_hours,,7.5\n" +
		"ath-1,2026-05-04,soreness,,\n" +
		"ath-1,2026-05-04,efficiency_factor,act-1,1.52\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := NewDataReader(path, internal.Discard).ReadSamples()
	require.NoError(t, err)
	require.Len(t, s.Inputs, 2)
	require.Len(t, s.Outputs, 1)
	assert.Equal(t, signal.SleepHours, s.Inputs[0].Signal)
	assert.Equal(t, 7.5, *s.Inputs[0].Value)
	assert.Nil(t, s.Inputs[1].Value, "blank cell is missing, not zero")
	assert.Equal(t, day, s.Outputs[0].Date)
	assert.Equal(t, "act-1", s.Outputs[0].ActivityID.String())
}

func TestReadSamplesXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet(SamplesSheet)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(SamplesSheet, "A1", &[]interface{}{"athlete_id", "date", "name", "activity_id", "value"}))
	require.NoError(t, f.SetSheetRow(SamplesSheet, "A2", &[]interface{}{"ath-2", "2026-05-04", "hrv_rmssd", "", 62}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	s, err := NewDataReader(path, internal.Discard).ReadSamples()
	require.NoError(t, err)
	require.Len(t, s.Inputs, 1)
	assert.Equal(t, signal.HRV, s.Inputs[0].Signal)
	assert.Equal(t, 62.0, *s.Inputs[0].Value)
}

func TestReadSamplesRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown signal", "athlete_id,date,name,value\nath-1,2026-05-04,vo2max,50\n", `row 2: unknown signal "vo2max"`},
		{"bad date", "athlete_id,date,name,value\nath-1,04/05/2026,tsb,1\n", "row 2"},
		{"bad value", "athlete_id,date,name,value\nath-1,2026-05-04,tsb,high\n", `bad value "high"`},
		{"missing column", "athlete_id,name,value\nath-1,tsb,1\n", `missing required column "date"`},
		{"header only", "athlete_id,date,name,value\n", "at least one data row"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "in.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := NewDataReader(path, internal.Discard).ReadSamples()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteReport(t *testing.T) {
	resp := insight.ResponseAcknowledged
	rep := &Report{
		Findings: []*correlation.Finding{{
			Key:             correlation.Key{Input: signal.SleepHours, Output: signal.EfficiencyFactor, LagDays: 1},
			R:               0.61,
			Confidence:      0.72,
			TimesConfirmed:  4,
			IsActive:        true,
			FirstDetectedOn: day.AddDate(0, 0, -30),
			LastConfirmedOn: day,
		}},
		Readiness: []*readiness.DailyReadiness{{
			Date:  day,
			Score: 58.5,
			Breakdown: []readiness.ComponentScore{
				{Component: "hrv", Available: true, Contribution: 20},
				{Component: "sleep", Available: true, Contribution: 38.5},
			},
		}},
		Insights: []*insight.Record{{Date: day, RuleID: "readiness_context", Subject: "readiness", Mode: insight.ModeInform, Action: insight.ActionNone, AthleteResponse: &resp}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rep))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetFindings, SheetReadiness, SheetComponents, SheetInsights}, f.GetSheetList())

	rows, err := f.GetRows(SheetFindings)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"sleep_hours", "efficiency_factor", "1"}, rows[1][:3])

	rows, err = f.GetRows(SheetComponents)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = f.GetRows(SheetInsights)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "acknowledged", rows[1][7])
}
