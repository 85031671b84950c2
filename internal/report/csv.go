package report

import (
	"bytes"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/nao1215/spidercrab/internal/model"
)

// CSVWriter outputs one row per unsuppressed finding with a header row.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the findings as CSV.
func (w *CSVWriter) Write(report *model.CheckReport) (int, error) {
	rows := report.Findings
	if rows == nil {
		rows = []model.Finding{}
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(&rows, &buf); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
