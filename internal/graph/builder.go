package graph

import (
	"slices"
	"sync"
	"time"

	"github.com/nao1215/spidercrab/internal/model"
)

// Builder collects pages, edges and findings of one crawl.
type Builder struct {
	mu     sync.Mutex
	report model.CheckReport
}

// NewBuilder starts a report for the run identified by runID.
func NewBuilder(runID, seed string, maxDepth int, startedAt time.Time) *Builder {
	return &Builder{
		report: model.CheckReport{
			RunID:     runID,
			Seed:      seed,
			MaxDepth:  maxDepth,
			StartedAt: startedAt,
		},
	}
}

// AddPage records a fetched URL.
func (b *Builder) AddPage(p model.PageResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Pages = append(b.report.Pages, p)
}

// AddEdge records a reference from one page to a target.
func (b *Builder) AddEdge(e model.Edge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Edges = append(b.report.Edges, e)
}

// AddFindings records the kept and suppressed findings of one page.
func (b *Builder) AddFindings(kept, suppressed []model.Finding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Findings = append(b.report.Findings, kept...)
	b.report.Suppressed = append(b.report.Suppressed, suppressed...)
}

// Abort marks the run as cancelled before the frontier drained.
func (b *Builder) Abort(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Aborted = true
	b.report.AbortReason = reason
}

// ExitCode returns the exit status for the findings recorded so far.
func (b *Builder) ExitCode() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.report.ExitCode()
}

// Report returns a copy of the accumulated report stamped with finishedAt.
func (b *Builder) Report(finishedAt time.Time) *model.CheckReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.report
	r.FinishedAt = finishedAt
	r.Pages = slices.Clone(b.report.Pages)
	r.Edges = slices.Clone(b.report.Edges)
	r.Findings = slices.Clone(b.report.Findings)
	r.Suppressed = slices.Clone(b.report.Suppressed)
	if r.Pages == nil {
		r.Pages = []model.PageResult{}
	}
	if r.Edges == nil {
		r.Edges = []model.Edge{}
	}
	if r.Findings == nil {
		r.Findings = []model.Finding{}
	}
	return &r
}
