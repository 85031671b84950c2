package model

import "fmt"

// Rule names. They appear in finding lines and in ignore files.
const (
	RuleHTTPError    = "http-error"
	RuleMissingHref  = "missing-href"
	RuleMissingSrc   = "missing-src"
	RuleEmptyScript  = "empty-script"
	RuleMissingTitle = "missing-title"
	RuleInvalidURL   = "invalid-url"
)

// RuleNames lists every rule name in evaluation order.
var RuleNames = []string{
	RuleHTTPError,
	RuleMissingTitle,
	RuleMissingHref,
	RuleMissingSrc,
	RuleEmptyScript,
	RuleInvalidURL,
}

// KnownRule reports whether name is a rule spidercrab can emit.
func KnownRule(name string) bool {
	for _, r := range RuleNames {
		if r == name {
			return true
		}
	}
	return false
}

// Finding is one rule violation.
type Finding struct {
	// Rule is one of the Rule* constants.
	Rule string `json:"rule" csv:"rule"`

	// Page is the URL the finding is attributed to. For http-error this is the
	// URL that failed; for other rules it is the page containing the element.
	Page string `json:"page" csv:"page"`

	// Message is a human readable description.
	Message string `json:"message" csv:"message"`
}

// Line formats the finding the way it is printed on the console.
func (f Finding) Line() string {
	return fmt.Sprintf("ERROR - SpiderError (%s): %s", f.Rule, f.Message)
}

// SuppressionRule silences findings of Rule attributed to URL.
type SuppressionRule struct {
	Rule string `json:"rule"`
	URL  string `json:"url"`
}
