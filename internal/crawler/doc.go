// Package crawler finds downloadable file references in a fetched page.
//
// # Components
//
//   - Resolve: relative URL resolution against the page URL
//   - Extractor: pattern based link extraction producing a lazy sequence
//   - Title: <title> lookup used for report headers
//
// # Extraction order
//
// Links are yielded in category order, then pattern order within the
// category, then textual match order within the pattern. Matching is
// incremental: the next match is searched only when the consumer asks for
// the next element, so downloads can start before the scan completes.
// Repeated references are yielded every time they match.
//
// # Usage
//
//	ext := crawler.NewExtractor(model.NewCategoryTable())
//	for link := range ext.Extract(pageURL, text, []model.Category{model.CategoryJPG}) {
//		fmt.Println(link)
//	}
package crawler
