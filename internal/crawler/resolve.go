package crawler

import (
	"net/url"
	"strings"
)

// Resolve resolves candidate against base following RFC 3986.
// Absolute candidates are returned in normalized form. A candidate that
// cannot be parsed as a URL reference is returned unchanged; Resolve never
// fails.
func Resolve(base *url.URL, candidate string) string {
	ref, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return candidate
	}
	return base.ResolveReference(ref).String()
}
