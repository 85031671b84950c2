package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rodaine/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/spidercrab/internal/model"
)

// SimpleWriter outputs one line per finding, the format CI logs and
// editors understand. With the summary option it adds a table of counts
// per rule and a one-line crawl summary.
type SimpleWriter struct {
	baseWriter

	// summary appends the per-rule table and totals.
	summary bool

	// printer formats counts with digit grouping.
	printer *message.Printer
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithSummary enables the per-rule summary after the finding lines.
func WithSummary(summary bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.summary = summary
	}
}

// WithLanguage sets the language used to format counts in the summary.
func WithLanguage(tag language.Tag) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.printer = message.NewPrinter(tag)
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the finding lines and, if enabled, the summary.
func (w *SimpleWriter) Write(report *model.CheckReport) (int, error) {
	var buf bytes.Buffer

	for _, f := range report.Findings {
		buf.WriteString(f.Line())
		buf.WriteString("\n")
	}

	if w.summary {
		w.writeSummary(&buf, report)
	}

	return w.output.Write(buf.Bytes())
}

// writeSummary writes the rule table and the totals line.
func (w *SimpleWriter) writeSummary(buf *bytes.Buffer, report *model.CheckReport) {
	if len(report.Findings) > 0 {
		buf.WriteString("\n")
		counts := report.CountByRule()
		tbl := table.New("Rule", "Findings").WithWriter(buf)
		for _, rule := range sortedRules(counts) {
			tbl.AddRow(rule, w.printer.Sprintf("%d", counts[rule]))
		}
		tbl.Print()
	}

	buf.WriteString("\n")
	buf.WriteString(w.printer.Sprintf("Checked %d pages from %s in %v: %d findings",
		len(report.Pages), report.Seed, report.Duration().Round(time.Millisecond), len(report.Findings)))
	if n := len(report.Suppressed); n > 0 {
		buf.WriteString(w.printer.Sprintf(" (%d suppressed)", n))
	}
	buf.WriteString("\n")

	if report.Aborted {
		fmt.Fprintf(buf, "Crawl interrupted: %s (partial results)\n", strings.TrimSpace(report.AbortReason))
	}
}
