// Package report renders a model.CrawlReport.
//
//   - SimpleWriter: the plain text summary printed after every crawl
//   - JSONWriter: the full report for tool integration
//   - MarkdownWriter: a GitHub Flavored Markdown document with tables,
//     alerts and a Mermaid pie chart
//
// Writers implement the Writer interface and can be combined with
// MultiWriter, e.g. to save a Markdown file and print the summary.
package report
