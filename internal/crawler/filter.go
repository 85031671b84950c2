package crawler

import (
	"net/url"
	"path"
	"strings"
)

// excluded reports whether targetURL matches one of the spider's exclude patterns.
// Excluded URLs are still graphed but never fetched.
func (s *Spider) excluded(targetURL string) bool {
	if len(s.excludePatterns) == 0 {
		return false
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pattern := range s.excludePatterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a directory
//   - a leading *. to match an extension anywhere
//
// Examples:
//   - "/archive/*" matches "/archive/2019/index.html"
//   - "*.pdf" matches "/docs/manual.pdf"
func matchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(urlPath, prefix+"/") || urlPath == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.Contains(ext, "/") {
		if strings.HasSuffix(urlPath, ext) {
			return true
		}
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}
	return false
}
