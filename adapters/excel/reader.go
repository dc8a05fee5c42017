package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"n1core/domain/core"
	"n1core/domain/signal"
	"n1core/internal"
)

// SamplesSheet is the sheet a workbook's samples are read from; the first sheet is
// used when it is absent
const SamplesSheet = "samples"

var sampleColumns = []string{"athlete_id", "date", "name", "activity_id", "value"}

// DataReader reads sample exports from Excel or CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a reader; the file type follows the extension
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(filePath)) == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger.Or()}
}

// ReadTable reads the raw header/value rows
func (r *DataReader) ReadTable() (*Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}
	start := time.Now()
	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	default:
		rows, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have a header row and at least one data row", strings.ToUpper(r.fileType))
	}
	t := processRows(rows)
	r.logger.Debug("read %s in %s (%d columns, %d rows)", r.filePath, time.Since(start), len(t.Headers), len(t.Rows))
	return t, nil
}

func (r *DataReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := SamplesSheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func processRows(rows [][]string) *Table {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}
	t := &Table{Headers: headers}
	for _, row := range rows[1:] {
		data := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				data[headers[j]] = strings.TrimSpace(cell)
			}
		}
		t.Rows = append(t.Rows, data)
	}
	return t
}

// ReadSamples reads the file and splits rows into inputs and outputs by signal name.
// An empty value cell is a missing observation, not zero.
func (r *DataReader) ReadSamples() (*Samples, error) {
	t, err := r.ReadTable()
	if err != nil {
		return nil, err
	}
	for _, col := range sampleColumns[:3] {
		if !hasHeader(t, col) {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	out := &Samples{}
	for i, row := range t.Rows {
		line := i + 2
		athlete, err := core.ParseAthleteID(row["athlete_id"])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		date, err := core.ParseDate(row["date"])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		name := signal.Name(row["name"])
		kind, ok := signal.KindOf(name)
		if !ok {
			return nil, fmt.Errorf("row %d: unknown signal %q", line, name)
		}
		var value *float64
		if raw := row["value"]; raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad value %q", line, raw)
			}
			value = &v
		}

		switch kind {
		case signal.KindInput:
			out.Inputs = append(out.Inputs, signal.InputSample{AthleteID: athlete, Signal: name, Date: date, Value: value})
		case signal.KindOutput:
			out.Outputs = append(out.Outputs, signal.OutputSample{
				AthleteID:  athlete,
				Metric:     name,
				Date:       date,
				ActivityID: core.ActivityID(row["activity_id"]),
				Value:      value,
			})
		}
	}
	r.logger.Info("loaded %d input and %d output samples from %s", len(out.Inputs), len(out.Outputs), r.filePath)
	return out, nil
}

func hasHeader(t *Table, name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}
