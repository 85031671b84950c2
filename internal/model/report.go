package model

import "time"

// Exit statuses of a check run.
const (
	ExitClean    = 0
	ExitFindings = 1
	ExitFault    = 2
)

// PageResult records one fetched URL.
type PageResult struct {
	// URL is the normalized URL.
	URL string `json:"url"`

	// Depth is the hop count from the seed.
	Depth int `json:"depth"`

	// Parent is the page the URL was first discovered on. Empty for the seed.
	Parent string `json:"parent,omitempty"`

	// Status is the fetch classification.
	Status OutcomeStatus `json:"status"`

	// Code is the HTTP status code, zero on transport errors.
	Code int `json:"code,omitempty"`

	// Reason describes a transport error.
	Reason string `json:"reason,omitempty"`

	// ContentType is the media type of a successful response.
	ContentType string `json:"content_type,omitempty"`

	// Title is the trimmed document title of a parsed page.
	Title string `json:"title,omitempty"`

	// Parsed is true when the body was run through the extractor.
	Parsed bool `json:"parsed"`
}

// Edge is a reference from one page to a target URL.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind Kind   `json:"kind"`
	Skip bool   `json:"skip,omitempty"`
}

// CheckReport is the result of one crawl.
type CheckReport struct {
	// RunID uniquely identifies the run in the history database.
	RunID string `json:"run_id"`

	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// MaxDepth is the configured depth limit, -1 for unbounded.
	MaxDepth int `json:"max_depth"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Pages lists every fetched URL ordered by depth, then discovery order.
	Pages []PageResult `json:"pages"`

	// Edges lists every reference with a resolvable target in discovery order.
	Edges []Edge `json:"edges"`

	// Findings are the unsuppressed findings in page order, document order within a page.
	Findings []Finding `json:"findings"`

	// Suppressed are the findings matched by an ignore rule.
	Suppressed []Finding `json:"suppressed,omitempty"`

	// Aborted is true when the run was cancelled before the frontier drained.
	Aborted     bool   `json:"aborted,omitempty"`
	AbortReason string `json:"abort_reason,omitempty"`
}

// ExitCode returns ExitFindings when any unsuppressed finding exists and
// ExitClean otherwise. Suppressed findings never affect it.
func (r *CheckReport) ExitCode() int {
	if len(r.Findings) > 0 {
		return ExitFindings
	}
	return ExitClean
}

// Duration returns how long the crawl took.
func (r *CheckReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountByRule returns the number of unsuppressed findings per rule name.
func (r *CheckReport) CountByRule() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Findings {
		counts[f.Rule]++
	}
	return counts
}

// Page returns the result recorded for url.
func (r *CheckReport) Page(url string) (PageResult, bool) {
	for _, p := range r.Pages {
		if p.URL == url {
			return p, true
		}
	}
	return PageResult{}, false
}
