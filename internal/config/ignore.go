package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/spidercrab/internal/model"
)

// LoadIgnoreFile reads suppression rules from path.
// A missing file is reported as an error wrapping os.ErrNotExist.
func LoadIgnoreFile(path string) ([]model.SuppressionRule, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided ignore path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules, err := ParseIgnore(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// ParseIgnore parses an ignore file.
//
// Each non-blank line that does not start with '#' holds a rule name and a URL
// separated by whitespace:
//
//	# the legacy page is gone for good
//	http-error https://example.com/legacy/
//	missing-title https://example.com/embed.html
//
// URLs are normalized the same way crawled URLs are, so the rule matches
// regardless of fragments, default ports or host case. Any malformed line
// is an error naming its line number.
func ParseIgnore(r io.Reader) ([]model.SuppressionRule, error) {
	var rules []model.SuppressionRule

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch {
		case len(fields) < 2:
			return nil, fmt.Errorf("line %d: %w: missing URL", lineNum, ErrIgnoreSyntax)
		case len(fields) > 2:
			return nil, fmt.Errorf("line %d: %w: unexpected text %q", lineNum, ErrIgnoreSyntax, strings.Join(fields[2:], " "))
		}

		rule, rawURL := fields[0], fields[1]
		if !model.KnownRule(rule) {
			return nil, fmt.Errorf("line %d: %w: %w %q", lineNum, ErrIgnoreSyntax, ErrUnknownRule, rule)
		}
		normalized, err := model.NormalizeURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %w", lineNum, ErrIgnoreSyntax, err)
		}
		rules = append(rules, model.SuppressionRule{Rule: rule, URL: normalized})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// ResolveIgnoreFile returns the ignore file to load. An explicit path is
// returned as is. Otherwise DefaultIgnoreFile is returned when it exists in
// the current directory, and "" when it does not.
func ResolveIgnoreFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultIgnoreFile); err != nil {
		return ""
	}
	return DefaultIgnoreFile
}
