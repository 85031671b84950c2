package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/spidercrab/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for pull request comments and wikis.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CheckReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeFailedPages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CheckReport) {
	md.H1("spidercrab report")
	md.PlainText("")

	depth := "unlimited"
	if report.MaxDepth >= 0 {
		depth = strconv.Itoa(report.MaxDepth)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Run", "`" + report.RunID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().String()},
			{"Max Depth", depth},
			{"Pages", strconv.Itoa(len(report.Pages))},
			{"Links", strconv.Itoa(len(report.Edges))},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on report state.
func statusText(report *model.CheckReport) string {
	if report.Aborted {
		return "⚠️ Interrupted (partial results)"
	}
	if len(report.Findings) > 0 {
		return "❌ Findings"
	}
	return "✅ Clean"
}

// writeSummary writes the per-rule counts, a chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CheckReport) {
	md.H2("Summary")
	md.PlainText("")

	counts := report.CountByRule()
	rules := sortedRules(counts)

	rows := make([][]string, 0, len(rules)+1)
	for _, rule := range rules {
		rows = append(rows, []string{"`" + rule + "`", strconv.Itoa(counts[rule])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(len(report.Findings)) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Rule", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(rules) > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Findings by Rule"),
			piechart.WithShowData(true),
		)
		for _, rule := range rules {
			chart.LabelAndIntValue(rule, uint64(counts[rule]))
		}
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case report.Aborted:
		md.Warningf("The crawl was interrupted (%s). Findings cover only the pages visited.", report.AbortReason)
	case len(report.Findings) > 0:
		md.Cautionf("%d finding(s) need attention.", len(report.Findings))
	default:
		md.Tip("No broken links or markup problems found.")
	}
	if n := len(report.Suppressed); n > 0 {
		md.Notef("%d finding(s) were suppressed by the ignore file.", n)
	}
	md.PlainText("")
}

// writeFindings writes one table per rule, in report order within each rule.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.CheckReport) {
	md.H2("Findings")
	md.PlainText("")

	if len(report.Findings) == 0 {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	for _, rule := range sortedRules(report.CountByRule()) {
		md.H3(rule)
		md.PlainText("")

		var rows [][]string
		for _, f := range report.Findings {
			if f.Rule != rule {
				continue
			}
			rows = append(rows, []string{"`" + f.Page + "`", truncateString(f.Message, 120)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Page", "Message"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFailedPages lists pages that could not be fetched successfully.
func (w *MarkdownWriter) writeFailedPages(md *markdown.Markdown, report *model.CheckReport) {
	var failed []string
	for _, p := range report.Pages {
		switch p.Status {
		case model.StatusHTTPError:
			failed = append(failed, "`"+p.URL+"` HTTP "+strconv.Itoa(p.Code))
		case model.StatusTransportError:
			failed = append(failed, "`"+p.URL+"` "+p.Reason)
		}
	}
	if len(failed) == 0 {
		return
	}

	md.Details("Unreachable URLs ("+strconv.Itoa(len(failed))+")", "\n- "+strings.Join(failed, "\n- ")+"\n")
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [spidercrab](https://github.com/nao1215/spidercrab)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
