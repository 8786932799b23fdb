// Package fetch provides the HTTP GET capability used by the crawl pipeline.
//
// The pipeline only depends on the Fetcher interface. HTTPFetcher is the
// production implementation: it follows redirects, applies the configured
// User-Agent, cookie and headers, and can route connections through a
// SOCKS5 proxy.
//
// A final status of 400 or above is reported as a *StatusError, which
// matches ErrBadStatus with errors.Is. Transport failures are returned as-is.
//
// # Usage
//
//	f, err := fetch.NewHTTPFetcher(fetch.WithTimeout(30 * time.Second))
//	resp, err := f.Fetch(ctx, "https://example.com/")
//	text := resp.Text()
package fetch
