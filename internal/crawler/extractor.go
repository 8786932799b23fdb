package crawler

import (
	"iter"
	"net/url"
	"regexp"

	"github.com/nao1215/miles/internal/model"
)

// Extractor applies category patterns to page content.
type Extractor struct {
	table *model.CategoryTable
}

// NewExtractor creates an Extractor backed by the given table.
func NewExtractor(table *model.CategoryTable) *Extractor {
	return &Extractor{table: table}
}

// Extract returns the absolute URLs of every match of the categories'
// patterns in content, resolved against pageURL. Categories missing from
// the table yield nothing.
//
// The sequence is finite and lazy. Ranging over it again rescans the same
// content and yields the same links in the same order; the page itself is
// never fetched again.
func (e *Extractor) Extract(pageURL *url.URL, content string, categories []model.Category) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, c := range categories {
			patterns, ok := e.table.Patterns(c)
			if !ok {
				continue
			}
			for _, re := range patterns {
				for raw := range matches(re, content) {
					if !yield(Resolve(pageURL, raw)) {
						return
					}
				}
			}
		}
	}
}

// matches yields the first capture group of each successive non-overlapping
// match of re in s, searching for the next match only on demand.
func matches(re *regexp.Regexp, s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		pos := 0
		for pos <= len(s) {
			loc := re.FindStringSubmatchIndex(s[pos:])
			if loc == nil {
				return
			}
			if len(loc) >= 4 && loc[2] >= 0 {
				if !yield(s[pos+loc[2] : pos+loc[3]]) {
					return
				}
			}
			if loc[1] == 0 {
				pos++
				continue
			}
			pos += loc[1]
		}
	}
}
