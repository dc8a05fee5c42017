package excel

import (
	"n1core/domain/correlation"
	"n1core/domain/insight"
	"n1core/domain/readiness"
	"n1core/domain/signal"
)

// RawRowData represents a row of raw sheet data as header/value pairs
type RawRowData map[string]string

// Table is one sheet or CSV file with trimmed headers
type Table struct {
	Headers []string
	Rows    []RawRowData
}

// Samples are the daily inputs and activity outputs read from a workbook
type Samples struct {
	Inputs  []signal.InputSample
	Outputs []signal.OutputSample
}

// Report is what an export workbook holds for one athlete
type Report struct {
	Findings  []*correlation.Finding
	Readiness []*readiness.DailyReadiness
	Insights  []*insight.Record
}
