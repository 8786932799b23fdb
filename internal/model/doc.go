// Package model defines the data structures shared by the crawl pipeline.
//
// This package contains the following main types:
//   - CategoryTable: The fixed mapping from file type categories to extraction patterns
//   - CrawlRequest: The immutable input of a single crawl
//   - DownloadOutcome: The per-URL result produced by a download worker
//   - CrawlReport: The aggregate metrics of a finished crawl
//
// Models live in their own package so that crawler, download, pipeline,
// report and database can all depend on them without import cycles.
// They are serializable to JSON for report output and history storage.
package model
