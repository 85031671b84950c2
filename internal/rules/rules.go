package rules

import (
	"fmt"
	"iter"
	"strings"

	"github.com/nao1215/spidercrab/internal/model"
)

// Document is a parsed HTML page.
type Document interface {
	HasTitle() bool
	References() iter.Seq[model.Reference]
}

// Page is everything the rules need to know about one fetched URL.
type Page struct {
	// URL is the normalized URL that was fetched.
	URL string

	// Parent is the page URL was first discovered on. Empty for the seed.
	Parent string

	// Outcome is the classified fetch result.
	Outcome model.FetchOutcome

	// Document is the parsed body, nil when the page was not parsed.
	Document Document
}

// Engine evaluates pages against the enabled rules.
type Engine struct {
	disabled map[string]struct{}
}

// NewEngine returns an engine that never emits the named rules.
func NewEngine(disabled ...string) *Engine {
	e := &Engine{disabled: make(map[string]struct{}, len(disabled))}
	for _, name := range disabled {
		e.disabled[name] = struct{}{}
	}
	return e
}

// Evaluate runs every rule against p with the default engine.
func Evaluate(p Page) []model.Finding {
	return NewEngine().Evaluate(p)
}

// Enabled reports whether rule may be emitted.
func (e *Engine) Enabled(rule string) bool {
	_, off := e.disabled[rule]
	return !off
}

// Evaluate returns the findings for p.
// A failed fetch yields at most the http-error finding, since there is no document to inspect.
func (e *Engine) Evaluate(p Page) []model.Finding {
	var findings []model.Finding
	add := func(f model.Finding) {
		if e.Enabled(f.Rule) {
			findings = append(findings, f)
		}
	}

	if !p.Outcome.OK() {
		add(httpError(p))
		return findings
	}
	if p.Document == nil {
		return findings
	}

	if !p.Document.HasTitle() {
		add(model.Finding{
			Rule:    model.RuleMissingTitle,
			Page:    p.URL,
			Message: fmt.Sprintf("page %s has no <title>", p.URL),
		})
	}
	for ref := range p.Document.References() {
		if f, ok := CheckReference(ref); ok {
			add(f)
		}
	}
	return findings
}

// CheckReference validates one reference structurally.
// It panics on a Kind outside the known set.
func CheckReference(ref model.Reference) (model.Finding, bool) {
	if ref.Skip {
		return model.Finding{}, false
	}

	finding := func(rule, format string, args ...any) (model.Finding, bool) {
		return model.Finding{
			Rule:    rule,
			Page:    ref.Origin,
			Message: fmt.Sprintf(format, args...),
		}, true
	}

	switch ref.Kind {
	case model.KindLink, model.KindStylesheet:
		if ref.Blank() {
			return finding(model.RuleMissingHref, "%s on %s %s", ref.Snippet, ref.Origin, describeBlank(ref))
		}
	case model.KindImage:
		if ref.Blank() {
			return finding(model.RuleMissingSrc, "%s on %s %s", ref.Snippet, ref.Origin, describeBlank(ref))
		}
	case model.KindScript:
		if !ref.HasTarget {
			if strings.TrimSpace(ref.Inline) == "" {
				return finding(model.RuleEmptyScript, "%s on %s has neither a src attribute nor content", ref.Snippet, ref.Origin)
			}
			return model.Finding{}, false
		}
		if ref.Blank() {
			return finding(model.RuleMissingSrc, "%s on %s %s", ref.Snippet, ref.Origin, describeBlank(ref))
		}
	default:
		panic(fmt.Sprintf("rules: unknown reference kind %d", int(ref.Kind)))
	}

	if ref.ResolveErr != nil {
		return finding(model.RuleInvalidURL, "%s on %s has an invalid URL %q: %v", ref.Snippet, ref.Origin, ref.Target, ref.ResolveErr)
	}
	return model.Finding{}, false
}

func describeBlank(ref model.Reference) string {
	if !ref.HasTarget {
		return "has no " + ref.Attribute + " attribute"
	}
	return "has an empty " + ref.Attribute + " attribute"
}

func httpError(p Page) model.Finding {
	var msg string
	switch p.Outcome.Status {
	case model.StatusHTTPError:
		msg = fmt.Sprintf("%s returned HTTP %d", p.URL, p.Outcome.Code)
	default:
		msg = fmt.Sprintf("%s could not be retrieved: %s", p.URL, p.Outcome.Reason)
	}
	if p.Parent != "" {
		msg += " (linked from " + p.Parent + ")"
	}
	return model.Finding{Rule: model.RuleHTTPError, Page: p.URL, Message: msg}
}
