// Package pipeline runs a crawl: it fetches the base page once, extracts
// links from it, downloads them with bounded parallelism and folds the
// outcomes into a report.
//
// The scheduler uses a fixed pool of workers. A producer goroutine pulls
// links from the extractor's lazy sequence and hands them to the workers
// over an unbuffered channel, so extraction proceeds only as fast as
// workers free up. Workers send outcomes to a result channel drained by a
// single aggregator goroutine, which is the only owner of the report while
// the crawl runs.
//
// A failed page fetch is fatal and reported as ErrPageFetchFailed before
// any download is dispatched. Failed downloads are not errors; they are
// recorded in the report and excluded from its totals.
package pipeline
