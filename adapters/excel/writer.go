package excel

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"n1core/domain/core"
)

// Sheet names written by Export
const (
	SheetFindings   = "findings"
	SheetReadiness  = "readiness"
	SheetComponents = "readiness_components"
	SheetInsights   = "insights"
)

// Write renders the report as an xlsx workbook
func Write(w io.Writer, rep *Report) error {
	f, err := build(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Export writes the report to path
func Export(path string, rep *Report) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(out, rep); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func build(rep *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetFindings, findingRows(rep)},
		{SheetReadiness, readinessRows(rep)},
		{SheetComponents, componentRows(rep)},
		{SheetInsights, insightRows(rep)},
	}
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		for r, row := range s.rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			row := row
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return nil, fmt.Errorf("sheet %s row %d: %w", s.name, r+1, err)
			}
		}
		if err := f.SetPanes(s.name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, fmt.Errorf("freeze header on %s: %w", s.name, err)
		}
	}
	return f, nil
}

func findingRows(rep *Report) [][]interface{} {
	rows := [][]interface{}{{
		"input", "output", "lag_days", "r", "p_value", "p_corrected", "n",
		"confidence", "times_confirmed", "active", "first_detected_on", "last_confirmed_on",
	}}
	for _, f := range rep.Findings {
		rows = append(rows, []interface{}{
			string(f.Key.Input), string(f.Key.Output), f.Key.LagDays, f.R, f.PValue, f.PCorrected, f.N,
			f.Confidence, f.TimesConfirmed, f.IsActive, core.DateKey(f.FirstDetectedOn), core.DateKey(f.LastConfirmedOn),
		})
	}
	return rows
}

func readinessRows(rep *Report) [][]interface{} {
	rows := [][]interface{}{{"date", "score", "missing_weight_share", "threshold_version"}}
	for _, d := range rep.Readiness {
		rows = append(rows, []interface{}{core.DateKey(d.Date), d.Score, d.MissingWeightShare, d.ThresholdVersion})
	}
	return rows
}

func componentRows(rep *Report) [][]interface{} {
	rows := [][]interface{}{{"date", "component", "available", "normalized", "effective_weight", "contribution", "weight_source"}}
	for _, d := range rep.Readiness {
		for _, c := range d.Breakdown {
			rows = append(rows, []interface{}{
				core.DateKey(d.Date), string(c.Component), c.Available, c.Normalized, c.EffectiveWeight, c.Contribution, string(c.WeightSource),
			})
		}
	}
	return rows
}

func insightRows(rep *Report) [][]interface{} {
	rows := [][]interface{}{{"date", "rule_id", "subject", "mode", "action", "message_key", "confidence", "response"}}
	for _, r := range rep.Insights {
		resp := ""
		if r.AthleteResponse != nil {
			resp = string(*r.AthleteResponse)
		}
		rows = append(rows, []interface{}{
			core.DateKey(r.Date), r.RuleID.String(), r.Subject, string(r.Mode), string(r.Action), r.MessageKey, r.Confidence, resp,
		})
	}
	return rows
}
