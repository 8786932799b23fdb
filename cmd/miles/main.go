// Package main provides the entry point for the miles CLI.
//
// miles fetches a single web page, extracts links to files of the
// requested types (jpg, mp3, pdf, png) and downloads them in parallel.
//
// Usage:
//
//	miles crawl https://example.com/gallery/
//	miles crawl -f jpg,png -n 4 -d ./out https://example.com/gallery/
//	miles history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
