// Package database stores crawl history in SQLite (modernc.org/sqlite,
// no cgo).
//
// Each crawl is one row in runs, keyed by the report's RunID, and each
// download attempt of the crawl is one row in outcomes. Runs are written in
// a single transaction so a partially saved run is never visible.
package database
