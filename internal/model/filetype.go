package model

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Category identifies a class of files to extract from a page, e.g. "jpg".
type Category string

// Known categories.
const (
	CategoryJPG Category = "jpg"
	CategoryMP3 Category = "mp3"
	CategoryPDF Category = "pdf"
	CategoryPNG Category = "png"
)

// ErrUnknownCategory is returned when a category has no entry in the table.
var ErrUnknownCategory = errors.New("unknown file type")

// defaultPatterns is the extraction table. Each pattern captures the raw
// reference in its first group. The unescaped dot before the extension is
// kept as it has always been matched.
var defaultPatterns = []struct {
	category Category
	patterns []string
}{
	{CategoryJPG, []string{`<img.*src="?([^" ]+.jpg)`, `<a.*href="?([^" ]+.jpg)`}},
	{CategoryMP3, []string{`<audio.*src="?([^" ]+.mp3)`, `a.*href="?([^" ]+.mp3)`}},
	{CategoryPDF, []string{`<a.*href="?([^" ]+.pdf)`}},
	{CategoryPNG, []string{`<img.*src="?([^" ]+.png)`, `<a.*href="?([^" ]+.png)`}},
}

// CategoryTable maps categories to their ordered extraction patterns.
// A table is immutable after construction and safe for concurrent use.
type CategoryTable struct {
	order    []Category
	patterns map[Category][]*regexp.Regexp
}

// NewCategoryTable compiles the built-in extraction table.
func NewCategoryTable() *CategoryTable {
	t := &CategoryTable{
		order:    make([]Category, 0, len(defaultPatterns)),
		patterns: make(map[Category][]*regexp.Regexp, len(defaultPatterns)),
	}
	for _, entry := range defaultPatterns {
		compiled := make([]*regexp.Regexp, 0, len(entry.patterns))
		for _, p := range entry.patterns {
			compiled = append(compiled, regexp.MustCompile(p))
		}
		t.order = append(t.order, entry.category)
		t.patterns[entry.category] = compiled
	}
	return t
}

// Categories returns every known category in table order.
func (t *CategoryTable) Categories() []Category {
	return slices.Clone(t.order)
}

// Patterns returns the patterns of a category in application order.
// The second return value is false for unknown categories.
func (t *CategoryTable) Patterns(c Category) ([]*regexp.Regexp, bool) {
	p, ok := t.patterns[c]
	if !ok {
		return nil, false
	}
	return slices.Clone(p), true
}

// Has reports whether the category is known.
func (t *CategoryTable) Has(c Category) bool {
	_, ok := t.patterns[c]
	return ok
}

// ParseCategories converts user supplied names into categories, keeping
// their order. Names are trimmed and lowercased; empty names are skipped.
// An empty input selects every known category.
func (t *CategoryTable) ParseCategories(names []string) ([]Category, error) {
	result := make([]Category, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		c := Category(name)
		if !t.Has(c) {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownCategory, name, t.knownList())
		}
		result = append(result, c)
	}
	if len(result) == 0 {
		return t.Categories(), nil
	}
	return result, nil
}

func (t *CategoryTable) knownList() string {
	names := make([]string, len(t.order))
	for i, c := range t.order {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
