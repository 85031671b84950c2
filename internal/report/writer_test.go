package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/nao1215/spidercrab/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.CheckReport {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.CheckReport{
		RunID:      "run-1",
		Seed:       "http://example.com/",
		MaxDepth:   -1,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Pages: []model.PageResult{
			{URL: "http://example.com/", Status: model.StatusSuccess, Code: 200, ContentType: "text/html", Title: "Home", Parsed: true},
			{URL: "http://example.com/missing.html", Depth: 1, Parent: "http://example.com/", Status: model.StatusHTTPError, Code: 404},
		},
		Edges: []model.Edge{
			{From: "http://example.com/", To: "http://example.com/missing.html", Kind: model.KindLink},
		},
		Findings: []model.Finding{
			{Rule: model.RuleHTTPError, Page: "http://example.com/missing.html", Message: "http://example.com/missing.html returned HTTP 404 (linked from http://example.com/)"},
			{Rule: model.RuleMissingHref, Page: "http://example.com/", Message: "<a> without href"},
			{Rule: model.RuleHTTPError, Page: "http://example.com/gone.html", Message: "http://example.com/gone.html returned HTTP 410"},
		},
		Suppressed: []model.Finding{
			{Rule: model.RuleMissingTitle, Page: "http://example.com/legacy.html", Message: "page has no title"},
		},
	}
}

func createCleanReport() *model.CheckReport {
	r := createTestReport()
	r.Findings = nil
	r.Suppressed = nil
	return r
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes one line per finding in report order", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "ERROR - SpiderError (http-error): http://example.com/missing.html returned HTTP 404 (linked from http://example.com/)\n" +
			"ERROR - SpiderError (missing-href): <a> without href\n" +
			"ERROR - SpiderError (http-error): http://example.com/gone.html returned HTTP 410\n"
		if buf.String() != want {
			t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
		}
	})

	t.Run("suppressed findings are not written", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "legacy.html") {
			t.Errorf("suppressed finding leaked into output: %s", buf.String())
		}
	})

	t.Run("clean report writes nothing", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createCleanReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 || buf.Len() != 0 {
			t.Errorf("expected empty output, got %q", buf.String())
		}
	})

	t.Run("summary adds table and totals", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithSummary(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"Rule", "Findings", "http-error", "missing-href", "Checked 2 pages from http://example.com/", "3 findings", "(1 suppressed)"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in summary, got:\n%s", want, output)
			}
		}
	})

	t.Run("summary groups digits", func(t *testing.T) {
		t.Parallel()

		r := createCleanReport()
		r.Pages = make([]model.PageResult, 1234)

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithSummary(true)).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Checked 1,234 pages") {
			t.Errorf("expected grouped count, got: %s", buf.String())
		}
	})

	t.Run("summary notes interrupted crawl", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Aborted = true
		r.AbortReason = "context canceled"

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithSummary(true)).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Crawl interrupted: context canceled") {
			t.Errorf("expected interruption note, got: %s", buf.String())
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes full report with metadata", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint(), WithVersion("v1.2.3"))
		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "v1.2.3" {
			t.Errorf("Version = %q", got.Version)
		}
		if got.ExitCode != model.ExitFindings {
			t.Errorf("ExitCode = %d, want %d", got.ExitCode, model.ExitFindings)
		}
		if got.Counts[model.RuleHTTPError] != 2 {
			t.Errorf("http-error count = %d, want 2", got.Counts[model.RuleHTTPError])
		}
		if len(got.Report.Pages) != 2 || len(got.Report.Edges) != 1 {
			t.Errorf("pages/edges not preserved: %+v", got.Report)
		}
		if got.Report.Edges[0].Kind != model.KindLink {
			t.Errorf("edge kind = %v", got.Report.Edges[0].Kind)
		}
	})

	t.Run("compact output is one line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createCleanReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("expected single line, got: %s", buf.String())
		}
		if !strings.Contains(buf.String(), `"exit_code":0`) {
			t.Errorf("expected exit_code 0, got: %s", buf.String())
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header summary and findings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# spidercrab report",
			"`http://example.com/`",
			"## Summary",
			"```mermaid",
			"Findings by Rule",
			"### http-error",
			"### missing-href",
			"[!CAUTION]",
			"[!NOTE]",
			"Unreachable URLs (1)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in markdown, got:\n%s", want, output)
			}
		}
	})

	t.Run("clean report has tip and no chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createCleanReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[!TIP]") {
			t.Errorf("expected tip, got:\n%s", output)
		}
		if strings.Contains(output, "```mermaid") {
			t.Errorf("unexpected chart for clean report")
		}
		if !strings.Contains(output, "No findings.") {
			t.Errorf("expected empty findings text")
		}
	})

	t.Run("interrupted report has warning", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Aborted = true
		r.AbortReason = "context canceled"

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Errorf("expected warning, got:\n%s", buf.String())
		}
	})
}

func TestCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewCSVWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header + 3 rows, got %d:\n%s", len(lines), buf.String())
		}
		if lines[0] != "rule,page,message" {
			t.Errorf("header = %q", lines[0])
		}
		if !strings.HasPrefix(lines[2], "missing-href,http://example.com/,") {
			t.Errorf("row order wrong: %q", lines[2])
		}
	})

	t.Run("clean report writes header only", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewCSVWriter(&buf).Write(createCleanReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(buf.String()) != "rule,page,message" {
			t.Errorf("got %q", buf.String())
		}
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		{format: "", want: "*report.SimpleWriter"},
		{format: FormatSimple, want: "*report.SimpleWriter"},
		{format: FormatJSON, want: "*report.JSONWriter"},
		{format: FormatMarkdown, want: "*report.MarkdownWriter"},
		{format: FormatCSV, want: "*report.CSVWriter"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			w, err := New(tt.format, &bytes.Buffer{}, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := typeName(w); got != tt.want {
				t.Errorf("New(%q) = %s, want %s", tt.format, got, tt.want)
			}
		})
	}

	t.Run("language formats summary counts", func(t *testing.T) {
		t.Parallel()

		r := createCleanReport()
		r.Pages = make([]model.PageResult, 1234)

		var buf bytes.Buffer
		w, err := New(FormatSimple, &buf, Options{Summary: true, Language: language.German})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := w.Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Checked 1.234 pages") {
			t.Errorf("expected German digit grouping, got: %s", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		_, err := New("xml", &bytes.Buffer{}, Options{})
		if !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("expected ErrUnknownFormat, got %v", err)
		}
	})
}

func typeName(w Writer) string {
	switch w.(type) {
	case *SimpleWriter:
		return "*report.SimpleWriter"
	case *JSONWriter:
		return "*report.JSONWriter"
	case *MarkdownWriter:
		return "*report.MarkdownWriter"
	case *CSVWriter:
		return "*report.CSVWriter"
	default:
		return "unknown"
	}
}

type failingWriter struct{}

func (failingWriter) Write(*model.CheckReport) (int, error) {
	return 0, errors.New("disk full")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		m := NewMultiWriter(NewSimpleWriter(&a), NewCSVWriter(&b))
		n, err := m.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != a.Len()+b.Len() {
			t.Errorf("n = %d, want %d", n, a.Len()+b.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		m := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))
		if _, err := m.Write(createTestReport()); err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("writer after failure should not run")
		}
	})
}
