package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/spidercrab/internal/model"
	"github.com/nao1215/spidercrab/internal/rules"
)

// testPage is one resource served by a testSite.
type testPage struct {
	status      int
	contentType string
	body        string
}

func htmlPage(body string) testPage {
	return testPage{status: http.StatusOK, contentType: "text/html; charset=utf-8", body: body}
}

// testSite serves fixed pages and counts requests per path.
type testSite struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func newTestSite(t *testing.T, pages map[string]testPage) *testSite {
	t.Helper()

	site := &testSite{hits: make(map[string]int)}
	site.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits[r.URL.Path]++
		site.mu.Unlock()

		p, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if p.contentType != "" {
			w.Header().Set("Content-Type", p.contentType)
		}
		w.WriteHeader(p.status)
		//nolint:errcheck // test handler
		_, _ = w.Write([]byte(p.body))
	}))
	t.Cleanup(site.Close)
	return site
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) url(path string) string {
	return s.URL + path
}

// fetcherFunc adapts a function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, url string) model.FetchOutcome

func (f fetcherFunc) Fetch(ctx context.Context, url string) model.FetchOutcome {
	return f(ctx, url)
}

func findingRules(r *model.CheckReport) []string {
	names := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		names = append(names, f.Rule)
	}
	return names
}

func pageURLs(r *model.CheckReport) []string {
	urls := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		urls = append(urls, p.URL)
	}
	return urls
}

func check(t *testing.T, seed string, opts ...SpiderOption) *model.CheckReport {
	t.Helper()

	report, err := NewSpider(NewHTTPFetcher(), opts...).Check(context.Background(), seed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return report
}

// TestSpiderScenarios covers the end-to-end behaviour of a check.
func TestSpiderScenarios(t *testing.T) {
	t.Parallel()

	t.Run("seed returning 404 yields one http-error", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{})
		report := check(t, site.url("/"))

		if report.ExitCode() == model.ExitClean {
			t.Error("expected a non-zero exit code")
		}
		if len(report.Findings) != 1 {
			t.Fatalf("expected 1 finding, got %+v", report.Findings)
		}
		f := report.Findings[0]
		if f.Rule != model.RuleHTTPError || f.Page != site.url("/") {
			t.Errorf("unexpected finding: %+v", f)
		}
	})

	t.Run("empty href yields missing-href", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/": htmlPage(`<html><head><title>Home</title></head><body><a href="">empty</a></body></html>`),
		})
		report := check(t, site.url("/"))

		if got := findingRules(report); !slices.Equal(got, []string{model.RuleMissingHref}) {
			t.Errorf("got findings %v", got)
		}
		if report.ExitCode() == model.ExitClean {
			t.Error("expected a non-zero exit code")
		}
	})

	t.Run("empty src on child page and its suppression", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/":      htmlPage(`<html><head><title>Home</title></head><body><a href="/child">child</a></body></html>`),
			"/child": htmlPage(`<html><head><title>Child</title></head><body><img src=""></body></html>`),
		})

		report := check(t, site.url("/"))
		if len(report.Findings) != 1 {
			t.Fatalf("expected 1 finding, got %+v", report.Findings)
		}
		if f := report.Findings[0]; f.Rule != model.RuleMissingSrc || f.Page != site.url("/child") {
			t.Errorf("unexpected finding: %+v", f)
		}

		suppressed := check(t, site.url("/"), WithSuppressions([]model.SuppressionRule{
			{Rule: model.RuleMissingSrc, URL: site.url("/child")},
		}))
		if suppressed.ExitCode() != model.ExitClean {
			t.Errorf("expected clean exit, got findings %+v", suppressed.Findings)
		}
		if len(suppressed.Suppressed) != 1 {
			t.Errorf("suppressed finding should be kept for traceability: %+v", suppressed.Suppressed)
		}
	})

	t.Run("skipped link is graphed but not checked", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/": htmlPage(`<html><head><title>Home</title></head><body>
				<a class="scrab-skip" href="https://dead.example">dead</a>
			</body></html>`),
		})
		report := check(t, site.url("/"))

		if report.ExitCode() != model.ExitClean {
			t.Errorf("expected clean exit, got %+v", report.Findings)
		}
		if len(report.Pages) != 1 {
			t.Errorf("skipped target must not be fetched: %v", pageURLs(report))
		}
		want := model.Edge{From: site.url("/"), To: "https://dead.example/", Kind: model.KindLink, Skip: true}
		if !slices.Contains(report.Edges, want) {
			t.Errorf("graph should contain the skipped edge: %+v", report.Edges)
		}
	})

	t.Run("depth zero never fetches children", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/": htmlPage(`<html><head><title>Home</title></head><body><a href="/broken">broken</a></body></html>`),
		})
		report := check(t, site.url("/"), WithMaxDepth(0))

		if report.ExitCode() != model.ExitClean {
			t.Errorf("expected clean exit, got %+v", report.Findings)
		}
		if site.hitCount("/broken") != 0 {
			t.Error("page beyond max depth was fetched")
		}
		if len(report.Edges) != 1 {
			t.Errorf("edge to the unfetched page should still be recorded: %+v", report.Edges)
		}
	})
}

// TestSpiderTraversal tests ordering and deduplication.
func TestSpiderTraversal(t *testing.T) {
	t.Parallel()

	t.Run("each URL is fetched once in BFS order", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/":  htmlPage(`<title>root</title><a href="/a">a</a><a href="/b">b</a><a href="/">self</a>`),
			"/a": htmlPage(`<title>a</title><a href="/c">c</a><a href="/b">b</a><img src="/logo.png">`),
			"/b": htmlPage(`<title>b</title><a href="/c">c</a><img src="/logo.png"><a href="/a#frag">a</a>`),
			"/c": htmlPage(`<title>c</title><a href="/">home</a>`),
			"/logo.png": {
				status: http.StatusOK, contentType: "image/png", body: "png",
			},
		})
		report := check(t, site.url("/"), WithWorkers(4))

		want := []string{site.url("/"), site.url("/a"), site.url("/b"), site.url("/c"), site.url("/logo.png")}
		if got := pageURLs(report); !slices.Equal(got, want) {
			t.Errorf("got pages %v, want %v", got, want)
		}
		for _, path := range []string{"/", "/a", "/b", "/c", "/logo.png"} {
			if n := site.hitCount(path); n != 1 {
				t.Errorf("%s fetched %d times", path, n)
			}
		}
		wantDepths := []int{0, 1, 1, 2, 2}
		for i, p := range report.Pages {
			if p.Depth != wantDepths[i] {
				t.Errorf("%s: got depth %d, want %d", p.URL, p.Depth, wantDepths[i])
			}
		}
		if report.ExitCode() != model.ExitClean {
			t.Errorf("expected clean exit, got %+v", report.Findings)
		}

		// 3 from root (including self), 3 from a, 3 from b, 1 from c.
		if len(report.Edges) != 10 {
			t.Errorf("got %d edges", len(report.Edges))
		}
	})

	t.Run("assets are fetched but not parsed", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/":         htmlPage(`<title>root</title><link rel="stylesheet" href="/site.css"><script src="/app.js"></script>`),
			"/site.css": {status: http.StatusOK, contentType: "text/css", body: `a { background: url("")}`},
			"/app.js":   {status: http.StatusOK, contentType: "application/javascript", body: `<a href="">`},
		})
		report := check(t, site.url("/"))

		if report.ExitCode() != model.ExitClean {
			t.Errorf("expected clean exit, got %+v", report.Findings)
		}
		for _, p := range report.Pages[1:] {
			if p.Parsed || p.Status != model.StatusSuccess {
				t.Errorf("unexpected asset result: %+v", p)
			}
		}
	})

	t.Run("broken asset is reported against the asset", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/": htmlPage(`<title>root</title><img src="/missing.png">`),
		})
		report := check(t, site.url("/"))

		if len(report.Findings) != 1 {
			t.Fatalf("expected 1 finding, got %+v", report.Findings)
		}
		f := report.Findings[0]
		if f.Rule != model.RuleHTTPError || f.Page != site.url("/missing.png") {
			t.Errorf("unexpected finding: %+v", f)
		}
		if !strings.Contains(f.Message, site.url("/")) {
			t.Errorf("message should name the referrer: %q", f.Message)
		}
	})

	t.Run("findings follow page then document order", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/":     htmlPage(`<a href="/next">n</a><img src=""><script></script>`),
			"/next": htmlPage(`<title>next</title><a href="">x</a>`),
		})
		report := check(t, site.url("/"))

		want := []string{model.RuleMissingTitle, model.RuleMissingSrc, model.RuleEmptyScript, model.RuleMissingHref}
		if got := findingRules(report); !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("mailto links are neither fetched nor flagged", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/": htmlPage(`<title>root</title><a href="mailto:someone@example.com">mail</a>`),
		})
		report := check(t, site.url("/"))

		if len(report.Pages) != 1 || report.ExitCode() != model.ExitClean {
			t.Errorf("unexpected report: pages %v findings %+v", pageURLs(report), report.Findings)
		}
		if len(report.Edges) != 1 {
			t.Errorf("mailto edge should be graphed: %+v", report.Edges)
		}
	})

	t.Run("page budget", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/":  htmlPage(`<title>root</title><a href="/a">a</a><a href="/b">b</a>`),
			"/a": htmlPage(`<title>a</title>`),
			"/b": htmlPage(`<title>b</title>`),
		})
		report := check(t, site.url("/"), WithMaxPages(2))

		if len(report.Pages) != 2 || site.hitCount("/b") != 0 {
			t.Errorf("got pages %v", pageURLs(report))
		}
	})

	t.Run("excluded paths are not fetched", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/": htmlPage(`<title>root</title><a href="/downloads/big.iso">iso</a>`),
		})
		report := check(t, site.url("/"), WithExcludePatterns([]string{"/downloads/*"}))

		if site.hitCount("/downloads/big.iso") != 0 || report.ExitCode() != model.ExitClean {
			t.Errorf("excluded URL was checked: %+v", report.Findings)
		}
	})

	t.Run("disabled rules are not reported", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/": htmlPage(`<a href="">x</a>`),
		})
		report := check(t, site.url("/"), WithRuleEngine(rules.NewEngine(model.RuleMissingTitle)))

		if got := findingRules(report); !slices.Equal(got, []string{model.RuleMissingHref}) {
			t.Errorf("got %v", got)
		}
	})
}

// TestSpiderHosts tests the parse allow-list.
func TestSpiderHosts(t *testing.T) {
	t.Parallel()

	foreign := newTestSite(t, map[string]testPage{
		"/": htmlPage(`<a href="">broken but foreign</a><a href="/deeper">deeper</a>`),
	})
	site := newTestSite(t, map[string]testPage{
		"/": htmlPage(`<title>root</title><a href="` + foreign.url("/") + `">elsewhere</a>`),
	})

	t.Run("foreign pages are fetched but not parsed", func(t *testing.T) {
		t.Parallel()

		report := check(t, site.url("/"))

		p, ok := report.Page(foreign.url("/"))
		if !ok {
			t.Fatalf("foreign page was not fetched: %v", pageURLs(report))
		}
		if p.Parsed {
			t.Error("foreign page should not be parsed")
		}
		if report.ExitCode() != model.ExitClean {
			t.Errorf("expected clean exit, got %+v", report.Findings)
		}
	})

	t.Run("configured hosts are parsed", func(t *testing.T) {
		t.Parallel()

		report := check(t, site.url("/"), WithHosts([]string{foreign.URL}))

		got := findingRules(report)
		if !slices.Contains(got, model.RuleMissingHref) {
			t.Errorf("allowed host should be parsed, got %v", got)
		}
	})

	// redirecting serves a local /go that answers with a redirect to the foreign site.
	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			//nolint:errcheck // test handler
			_, _ = w.Write([]byte(`<title>root</title><a href="/go">follow us</a>`))
		case "/go":
			http.Redirect(w, r, foreign.url("/"), http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(redirecting.Close)

	t.Run("redirect to a foreign host is not parsed", func(t *testing.T) {
		t.Parallel()

		report := check(t, redirecting.URL+"/")

		p, ok := report.Page(redirecting.URL + "/go")
		if !ok {
			t.Fatalf("redirecting page was not fetched: %v", pageURLs(report))
		}
		if p.Status != model.StatusSuccess {
			t.Errorf("expected redirect to be reachable, got %v", p.Status)
		}
		if p.Parsed {
			t.Error("page served by a foreign host should not be parsed")
		}
		if len(report.Findings) != 0 {
			t.Errorf("expected no findings, got %+v", report.Findings)
		}
		if _, ok := report.Page(foreign.url("/deeper")); ok {
			t.Error("children of a foreign page should not be enqueued")
		}
	})

	t.Run("redirect to a configured host is parsed", func(t *testing.T) {
		t.Parallel()

		report := check(t, redirecting.URL+"/", WithHosts([]string{foreign.URL}))

		// References resolve against the foreign host, findings stay on the requested URL.
		expected := []string{
			model.RuleMissingTitle + " " + redirecting.URL + "/go",
			model.RuleMissingHref + " " + redirecting.URL + "/go",
			model.RuleHTTPError + " " + foreign.url("/deeper"),
		}
		got := make([]string, 0, len(report.Findings))
		for _, f := range report.Findings {
			got = append(got, f.Rule+" "+f.Page)
		}
		if !slices.Equal(got, expected) {
			t.Errorf("got %v, expected %v", got, expected)
		}
	})
}

// TestSpiderCheckErrors tests engine faults and cancellation.
func TestSpiderCheckErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid seeds", func(t *testing.T) {
		t.Parallel()

		for _, seed := range []string{"", "/relative", "ftp://example.com/", "http://[::1", "mailto:a@example.com"} {
			_, err := NewSpider(NewHTTPFetcher()).Check(context.Background(), seed)
			if !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("seed %q: expected ErrInvalidSeed, got %v", seed, err)
			}
		}
	})

	t.Run("cancellation returns a partial report", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{
			"/":     htmlPage(`<a href="">x</a><a href="/slow">slow</a><a href="/fast">fast</a>`),
			"/slow": htmlPage(`<title>slow</title>`),
			"/fast": htmlPage(`<title>fast</title>`),
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		inner := NewHTTPFetcher()
		fetcher := fetcherFunc(func(ctx context.Context, url string) model.FetchOutcome {
			if strings.HasSuffix(url, "/slow") {
				cancel()
				return model.FetchOutcome{URL: url, Status: model.StatusTransportError, Reason: "context canceled"}
			}
			return inner.Fetch(ctx, url)
		})

		report, err := NewSpider(fetcher, WithWorkers(1)).Check(ctx, site.url("/"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Aborted || report.AbortReason == "" {
			t.Error("report should be marked aborted")
		}
		if _, ok := report.Page(site.url("/slow")); ok {
			t.Error("interrupted fetch should be discarded")
		}
		if !slices.Contains(findingRules(report), model.RuleMissingHref) {
			t.Errorf("findings collected before cancellation should be kept: %+v", report.Findings)
		}
		for _, f := range report.Findings {
			if f.Rule == model.RuleHTTPError {
				t.Errorf("interrupted fetch must not become a finding: %+v", f)
			}
		}
	})

	t.Run("report carries run metadata", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]testPage{"/": htmlPage(`<title>x</title>`)})
		spider := NewSpider(NewHTTPFetcher(), WithMaxDepth(3))
		spider.newRunID = func() string { return "fixed-id" }

		report, err := spider.Check(context.Background(), strings.ToUpper(site.url("")))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.RunID != "fixed-id" || report.MaxDepth != 3 || report.Seed != site.url("/") {
			t.Errorf("unexpected metadata: %+v", report)
		}
		if report.FinishedAt.Before(report.StartedAt) {
			t.Error("finish time precedes start time")
		}
	})
}

// TestSpiderOptions tests spider configuration options.
func TestSpiderOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(nil)
		if spider.maxDepth != -1 || spider.workers != DefaultWorkers || spider.maxPages != 0 {
			t.Errorf("unexpected defaults: depth %d workers %d pages %d", spider.maxDepth, spider.workers, spider.maxPages)
		}
	})

	t.Run("WithWorkers clamps to one", func(t *testing.T) {
		t.Parallel()

		if spider := NewSpider(nil, WithWorkers(0)); spider.workers != 1 {
			t.Errorf("got %d workers", spider.workers)
		}
	})

	t.Run("allowed hosts", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(nil, WithHosts([]string{"Docs.Example.com", "https://cdn.example.com:8443/x", " "}))
		allowed := spider.allowedHosts("https://example.com/")
		for _, h := range []string{"example.com", "docs.example.com", "cdn.example.com:8443"} {
			if _, ok := allowed[h]; !ok {
				t.Errorf("%q should be allowed: %v", h, allowed)
			}
		}
		if len(allowed) != 3 {
			t.Errorf("got %v", allowed)
		}
	})
}
