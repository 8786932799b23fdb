package model

import (
	"errors"
	"slices"
	"testing"
)

// TestCategoryTable tests the built-in extraction table.
func TestCategoryTable(t *testing.T) {
	t.Parallel()

	t.Run("lists categories in table order", func(t *testing.T) {
		t.Parallel()

		table := NewCategoryTable()
		expected := []Category{CategoryJPG, CategoryMP3, CategoryPDF, CategoryPNG}
		if got := table.Categories(); !slices.Equal(got, expected) {
			t.Errorf("expected %v, got %v", expected, got)
		}
	})

	t.Run("pattern counts match the table", func(t *testing.T) {
		t.Parallel()

		table := NewCategoryTable()
		testCases := map[Category]int{
			CategoryJPG: 2,
			CategoryMP3: 2,
			CategoryPDF: 1,
			CategoryPNG: 2,
		}
		for c, n := range testCases {
			patterns, ok := table.Patterns(c)
			if !ok {
				t.Fatalf("expected %s to be known", c)
			}
			if len(patterns) != n {
				t.Errorf("%s: expected %d patterns, got %d", c, n, len(patterns))
			}
		}
	})

	t.Run("unknown category has no patterns", func(t *testing.T) {
		t.Parallel()

		table := NewCategoryTable()
		if _, ok := table.Patterns("gif"); ok {
			t.Error("expected gif to be unknown")
		}
		if table.Has("gif") {
			t.Error("Has should report false for gif")
		}
	})

	t.Run("returned slices do not alias the table", func(t *testing.T) {
		t.Parallel()

		table := NewCategoryTable()
		cats := table.Categories()
		cats[0] = "changed"
		if table.Categories()[0] != CategoryJPG {
			t.Error("mutating the returned slice changed the table")
		}
	})

	t.Run("jpg patterns capture image and anchor references", func(t *testing.T) {
		t.Parallel()

		table := NewCategoryTable()
		patterns, _ := table.Patterns(CategoryJPG)

		m := patterns[0].FindStringSubmatch(`<img class="x" src="static/a.jpg">`)
		if m == nil || m[1] != "static/a.jpg" {
			t.Errorf("img pattern: got %v", m)
		}
		m = patterns[1].FindStringSubmatch(`<a href="/b.jpg">b</a>`)
		if m == nil || m[1] != "/b.jpg" {
			t.Errorf("anchor pattern: got %v", m)
		}
	})
}

// TestParseCategories tests conversion of user supplied names.
func TestParseCategories(t *testing.T) {
	t.Parallel()

	table := NewCategoryTable()

	t.Run("keeps caller order", func(t *testing.T) {
		t.Parallel()

		got, err := table.ParseCategories([]string{"pdf", "jpg"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(got, []Category{CategoryPDF, CategoryJPG}) {
			t.Errorf("unexpected order: %v", got)
		}
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		t.Parallel()

		got, err := table.ParseCategories([]string{" PNG ", ""})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(got, []Category{CategoryPNG}) {
			t.Errorf("unexpected result: %v", got)
		}
	})

	t.Run("empty selects all", func(t *testing.T) {
		t.Parallel()

		got, err := table.ParseCategories(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 4 {
			t.Errorf("expected 4 categories, got %v", got)
		}
	})

	t.Run("unknown name returns ErrUnknownCategory", func(t *testing.T) {
		t.Parallel()

		_, err := table.ParseCategories([]string{"jpg", "gif"})
		if !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("expected ErrUnknownCategory, got %v", err)
		}
	})
}
