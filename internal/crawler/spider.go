package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spidercrab/internal/graph"
	"github.com/nao1215/spidercrab/internal/model"
	"github.com/nao1215/spidercrab/internal/rules"
)

// DefaultWorkers is the default number of concurrent fetches.
const DefaultWorkers = 8

// Spider checks every page and asset reachable from a seed URL.
//
// A Spider holds configuration only. Each Check call builds its own crawl
// state, so one Spider can run several checks, even concurrently.
type Spider struct {
	// fetcher retrieves URLs.
	fetcher Fetcher

	// maxDepth limits how deep to crawl from the seed.
	// 0 means only the seed, 1 means the seed plus what it references, etc.
	// A negative value means unbounded.
	maxDepth int

	// maxPages caps the number of fetched URLs. Zero means unlimited.
	maxPages int

	// workers is the number of concurrent fetches.
	workers int

	// hosts are parsed in addition to the seed host.
	hosts []string

	// engine classifies pages into findings.
	engine *rules.Engine

	// suppressions are the ignore rules, with normalized URLs.
	suppressions []model.SuppressionRule

	// excludePatterns are URL path patterns that are never fetched.
	excludePatterns []string

	logger *slog.Logger

	// now and newRunID are replaced in tests.
	now      func() time.Time
	newRunID func() string
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth. A negative depth is unbounded.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages caps the number of URLs fetched in one check.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithWorkers sets the number of concurrent fetches.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		s.workers = n
	}
}

// WithHosts adds hosts whose HTML pages are parsed. The seed host is always
// included. Entries may be bare hosts ("docs.example.com:8080") or URLs.
func WithHosts(hosts []string) SpiderOption {
	return func(s *Spider) {
		s.hosts = hosts
	}
}

// WithRuleEngine sets the rule engine, e.g. one with disabled rules.
func WithRuleEngine(engine *rules.Engine) SpiderOption {
	return func(s *Spider) {
		s.engine = engine
	}
}

// WithSuppressions sets the ignore rules. URLs must already be normalized.
func WithSuppressions(suppressions []model.SuppressionRule) SpiderOption {
	return func(s *Spider) {
		s.suppressions = suppressions
	}
}

// WithExcludePatterns sets URL path patterns that are graphed but never fetched.
// Patterns use glob syntax (e.g., "/archive/*", "*.zip").
func WithExcludePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.excludePatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that retrieves URLs with fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  fetcher,
		maxDepth: -1,
		workers:  DefaultWorkers,
		engine:   rules.NewEngine(),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// crawlState is the mutable state of one Check call.
type crawlState struct {
	frontier   *Frontier
	graph      *graph.Builder
	suppressor *rules.Suppressor

	// allowed holds the hosts whose HTML pages are parsed.
	allowed map[string]struct{}
}

// visit is the result of fetching and evaluating one frontier item.
type visit struct {
	item     Item
	outcome  model.FetchOutcome
	title    string
	parsed   bool
	refs     []model.Reference
	findings []model.Finding
}

// Check crawls breadth-first from seed and returns the report.
//
// The frontier is drained one depth layer at a time. Items of a layer are
// fetched and evaluated concurrently, then committed in discovery order, so
// the report is identical from run to run for the same site.
//
// Check returns ErrInvalidSeed when the seed is unusable. Cancelling ctx
// stops the crawl: results of fetches interrupted by the cancellation are
// dropped and the partial report is returned with Aborted set.
func (s *Spider) Check(ctx context.Context, seed string) (*model.CheckReport, error) {
	seedURL, err := normalizeSeed(seed)
	if err != nil {
		return nil, err
	}

	st := &crawlState{
		frontier:   NewFrontier(s.maxDepth, s.maxPages),
		graph:      graph.NewBuilder(s.newRunID(), seedURL, s.maxDepth, s.now()),
		suppressor: rules.NewSuppressor(s.suppressions),
		allowed:    s.allowedHosts(seedURL),
	}
	st.frontier.Enqueue(seedURL, 0, "")

	s.logger.Info("starting check", "seed", seedURL, "max_depth", s.maxDepth, "workers", s.workers)

	for {
		if err := ctx.Err(); err != nil {
			st.graph.Abort(context.Cause(ctx).Error())
			break
		}
		layer := st.frontier.DequeueLayer()
		if layer == nil {
			break
		}
		s.logger.Debug("processing layer", "depth", layer[0].Depth, "urls", len(layer))

		results := s.visitLayer(ctx, st, layer)
		for _, v := range results {
			if v != nil {
				s.commit(st, v)
			}
		}
	}

	for _, r := range st.suppressor.Inert() {
		s.logger.Debug("ignore rule matched nothing", "rule", r.Rule, "url", r.URL)
	}

	report := st.graph.Report(s.now())
	s.logger.Info("check finished",
		"pages", len(report.Pages),
		"findings", len(report.Findings),
		"suppressed", len(report.Suppressed),
		"aborted", report.Aborted,
	)
	return report, nil
}

// visitLayer fetches and evaluates the items of one layer on the worker pool.
// The result slice is index-aligned with layer; nil entries were not
// dispatched or were interrupted by cancellation.
func (s *Spider) visitLayer(ctx context.Context, st *crawlState, layer []Item) []*visit {
	results := make([]*visit, len(layer))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, item := range layer {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = s.visit(ctx, st, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// visit fetches item and, for HTML served from an allowed host, parses and
// evaluates it. The host check applies to the URL reached after redirects.
func (s *Spider) visit(ctx context.Context, st *crawlState, item Item) *visit {
	outcome := s.fetcher.Fetch(ctx, item.URL)
	if ctx.Err() != nil {
		s.logger.Debug("discarding interrupted fetch", "url", item.URL)
		return nil
	}
	if outcome.FinalURL == "" {
		outcome.FinalURL = item.URL
	}

	v := &visit{item: item, outcome: outcome}
	page := rules.Page{URL: item.URL, Parent: item.Parent, Outcome: outcome}

	switch {
	case !outcome.OK():
		s.logger.Info("fetch failed", "url", item.URL, "status", outcome.Code, "reason", outcome.Reason)
	case !outcome.IsHTML():
		s.logger.Debug("not parsing, content is not HTML", "url", item.URL, "content_type", outcome.ContentType)
	case !st.isAllowed(outcome.FinalURL):
		s.logger.Debug("not parsing, host is outside the allow-list", "url", item.URL, "final_url", outcome.FinalURL)
	default:
		parser, err := NewParserAt(item.URL, outcome.FinalURL)
		if err != nil {
			s.logger.Warn("cannot parse page", "url", item.URL, "error", err)
			break
		}
		doc, err := parser.Parse(bytes.NewReader(outcome.Body))
		if err != nil {
			s.logger.Warn("cannot parse page", "url", item.URL, "error", err)
			break
		}
		v.parsed = true
		v.title = doc.Title()
		v.refs = slices.Collect(doc.References())
		page.Document = doc
		s.logger.Info("visited page", "url", item.URL, "depth", item.Depth, "references", len(v.refs))
	}

	v.findings = s.engine.Evaluate(page)
	return v
}

// commit records v in the graph and enqueues its children. It runs on the
// coordinating goroutine only, in layer order.
func (s *Spider) commit(st *crawlState, v *visit) {
	st.graph.AddPage(model.PageResult{
		URL:         v.item.URL,
		Depth:       v.item.Depth,
		Parent:      v.item.Parent,
		Status:      v.outcome.Status,
		Code:        v.outcome.Code,
		Reason:      v.outcome.Reason,
		ContentType: v.outcome.ContentType,
		Title:       v.title,
		Parsed:      v.parsed,
	})

	for _, ref := range v.refs {
		if ref.Resolved == "" {
			continue
		}
		st.graph.AddEdge(model.Edge{From: v.item.URL, To: ref.Resolved, Kind: ref.Kind, Skip: ref.Skip})
		if !ref.Traversable() || s.excluded(ref.Resolved) {
			continue
		}
		st.frontier.Enqueue(ref.Resolved, v.item.Depth+1, v.item.URL)
	}

	kept, suppressed := st.suppressor.Filter(v.findings)
	for _, f := range suppressed {
		s.logger.Debug("finding suppressed", "rule", f.Rule, "page", f.Page)
	}
	st.graph.AddFindings(kept, suppressed)
}

func (st *crawlState) isAllowed(pageURL string) bool {
	_, ok := st.allowed[model.Host(pageURL)]
	return ok
}

// allowedHosts returns the seed host plus the configured hosts, normalized.
func (s *Spider) allowedHosts(seedURL string) map[string]struct{} {
	allowed := map[string]struct{}{model.Host(seedURL): {}}
	for _, h := range s.hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !strings.Contains(h, "://") {
			h = "http://" + h
		}
		if n, err := model.NormalizeURL(h); err == nil {
			allowed[model.Host(n)] = struct{}{}
		}
	}
	return allowed
}

// normalizeSeed validates and normalizes the seed URL.
func normalizeSeed(seed string) (string, error) {
	n, err := model.NormalizeURL(seed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if !model.IsFetchable(n) {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidSeed, seed, model.ErrUnsupportedScheme)
	}
	if u, err := url.Parse(n); err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidSeed, seed)
	}
	return n, nil
}
