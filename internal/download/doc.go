// Package download fetches a single URL and stores its body in a
// destination directory.
//
// A Worker never returns an error: every attempt, successful or not, is
// reported as a model.DownloadOutcome so the caller can aggregate results
// without stopping the crawl.
package download
