package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// NewReportGenerator creates a report generator based on the report type.
func NewReportGenerator(reportType ReportType, src Source) (Generator, error) {
	switch reportType {
	case ReportTypeIssues:
		return NewIssuesReport(src), nil
	case ReportTypeUtilization:
		return NewUtilizationReport(src), nil
	case ReportTypeEvents:
		return NewEventsReport(src), nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
}

// writeCSV renders headers and rows into a buffer.
func writeCSV(headers []string, rows [][]string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write rows: %w", err)
	}
	return buf, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
