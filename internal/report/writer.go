package report

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/language"

	"github.com/nao1215/spidercrab/internal/model"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names accepted by New.
const (
	FormatSimple   = "simple"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CheckReport) (int, error)
}

// Options holds the settings shared by all formats.
type Options struct {
	// Summary appends per-rule counts to the simple format.
	Summary bool

	// Version is embedded in JSON and Markdown output.
	Version string

	// Language formats counts in the simple summary. The zero value keeps English.
	Language language.Tag
}

// New returns the Writer for the named format.
func New(format string, output io.Writer, opts Options) (Writer, error) {
	switch format {
	case FormatSimple, "":
		simpleOpts := []SimpleWriterOption{WithSummary(opts.Summary)}
		if opts.Language != language.Und {
			simpleOpts = append(simpleOpts, WithLanguage(opts.Language))
		}
		return NewSimpleWriter(output, simpleOpts...), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(opts.Version)), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatCSV:
		return NewCSVWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CheckReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// sortedRules returns the rules present in counts in the canonical rule order.
func sortedRules(counts map[string]int) []string {
	rules := make([]string, 0, len(counts))
	for _, name := range model.RuleNames {
		if counts[name] > 0 {
			rules = append(rules, name)
		}
	}
	return rules
}
