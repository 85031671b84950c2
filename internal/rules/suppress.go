package rules

import (
	"sync"

	"github.com/nao1215/spidercrab/internal/model"
)

type suppressionKey struct {
	rule string
	url  string
}

// Suppressor drops findings matched by an ignore rule.
// It is safe for concurrent use.
type Suppressor struct {
	rules []model.SuppressionRule
	index map[suppressionKey]int

	mu      sync.Mutex
	matched []bool
}

// NewSuppressor builds a suppressor from rules whose URLs are already normalized.
func NewSuppressor(rules []model.SuppressionRule) *Suppressor {
	s := &Suppressor{
		rules:   rules,
		index:   make(map[suppressionKey]int, len(rules)),
		matched: make([]bool, len(rules)),
	}
	for i, r := range rules {
		key := suppressionKey{rule: r.Rule, url: r.URL}
		if _, dup := s.index[key]; !dup {
			s.index[key] = i
		}
	}
	return s
}

// Filter splits findings into those that are kept and those that an ignore
// rule suppresses. Relative order is preserved in both slices.
func (s *Suppressor) Filter(findings []model.Finding) (kept, suppressed []model.Finding) {
	if s == nil || len(s.index) == 0 {
		return findings, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range findings {
		i, ok := s.index[suppressionKey{rule: f.Rule, url: f.Page}]
		if !ok {
			kept = append(kept, f)
			continue
		}
		s.matched[i] = true
		suppressed = append(suppressed, f)
	}
	return kept, suppressed
}

// Inert returns the rules that have not matched any finding so far, in load order.
func (s *Suppressor) Inert() []model.SuppressionRule {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var inert []model.SuppressionRule
	for i, r := range s.rules {
		if s.index[suppressionKey{rule: r.Rule, url: r.URL}] != i {
			continue
		}
		if !s.matched[i] {
			inert = append(inert, r)
		}
	}
	return inert
}

// Len returns the number of loaded rules.
func (s *Suppressor) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
