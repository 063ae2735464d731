package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is the tabular payload shared by both exporters. Rows are keyed by
// header name so callers can leave cells empty.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, h := range d.Headers {
		out[i] = row[h]
	}
	return out
}

// CSVExporter renders a Dataset as CSV bytes.
type CSVExporter struct{}

// NewCSVExporter constructs a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the dataset, header line first.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv export: empty header set")
	}
	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		records = append(records, data.record(row))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("csv export: %w", err)
	}
	return buf.Bytes(), nil
}
