package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Errors returned by URL normalization.
var (
	// ErrNotAbsolute is returned when a URL has no scheme or host.
	ErrNotAbsolute = errors.New("url is not absolute")

	// ErrUnsupportedScheme is returned when a URL that must be fetched is not http or https.
	ErrUnsupportedScheme = errors.New("url scheme must be http or https")
)

// defaultPorts maps schemes to the port that is implied when none is given.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// NormalizeURL parses raw as an absolute URL and returns its canonical form.
//
// Two URLs that address the same resource normalize to the same string:
//   - scheme and host are lowercased, IDN hosts are converted to punycode
//   - the default port of the scheme is dropped
//   - an empty path becomes "/" and dot segments are resolved
//   - the fragment is removed
//
// The query string is kept verbatim.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %q", ErrNotAbsolute, raw)
	}
	if err := canonicalize(u); err != nil {
		return "", err
	}
	return u.String(), nil
}

// ResolveReference resolves ref against base and returns the normalized result.
// base must already be an absolute URL.
func ResolveReference(base *url.URL, ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	u := base.ResolveReference(r)
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %q", ErrNotAbsolute, ref)
	}
	if err := canonicalize(u); err != nil {
		return "", err
	}
	return u.String(), nil
}

// IsFetchable reports whether the normalized URL uses a scheme the fetcher understands.
func IsFetchable(normalized string) bool {
	return strings.HasPrefix(normalized, "http://") || strings.HasPrefix(normalized, "https://")
}

// Host returns the host (with port, if any) of a normalized URL.
func Host(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return u.Host
}

// canonicalize rewrites u in place. Opaque URLs such as mailto: are only lowercased
// in their scheme.
func canonicalize(u *url.URL) error {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""
	u.RawFragment = ""

	if u.Opaque != "" || u.Host == "" {
		return nil
	}

	hostname := strings.ToLower(u.Hostname())
	port := u.Port()
	switch {
	case strings.Contains(hostname, ":"):
		hostname = "[" + hostname + "]"
	case !isASCII(hostname):
		ascii, err := toASCIIHost(hostname)
		if err != nil {
			return fmt.Errorf("invalid host %q: %w", hostname, err)
		}
		hostname = ascii
	}
	if port != "" && defaultPorts[u.Scheme] == port {
		port = ""
	}
	if port != "" {
		u.Host = hostname + ":" + port
	} else {
		u.Host = hostname
	}

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	} else if p := resolveDotSegments(u.Path); p != u.Path {
		u.Path = p
		u.RawPath = ""
	}
	return nil
}

// toASCIIHost converts an internationalized host name to punycode. Lookup mapping is
// tried first so that width and case variants collapse; hosts rejected by it fall
// back to raw punycode encoding.
func toASCIIHost(hostname string) (string, error) {
	if ascii, err := idna.Lookup.ToASCII(hostname); err == nil {
		return ascii, nil
	}
	return idna.Punycode.ToASCII(hostname)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// resolveDotSegments removes "." and ".." segments from an absolute path,
// keeping a trailing slash when the input had one.
func resolveDotSegments(p string) string {
	if !strings.Contains(p, ".") {
		return p
	}
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		last := i == len(segments)-1
		switch seg {
		case ".":
			if last {
				out = append(out, "")
			}
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, seg)
		}
	}
	joined := strings.Join(out, "/")
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}
