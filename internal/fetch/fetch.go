package fetch

import (
	"bytes"
	"context"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Fetcher retrieves the resource at a URL.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	return f(ctx, rawURL)
}

// Response is a successfully fetched resource.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the final HTTP status.
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body holds the raw response bytes, unmodified.
	Body []byte
}

// Text returns the body decoded to UTF-8. The encoding is taken from the
// Content-Type header, a byte order mark or a <meta charset> declaration.
// Undecodable bodies are returned as-is.
func (r *Response) Text() string {
	reader, err := charset.NewReader(bytes.NewReader(r.Body), r.ContentType)
	if err != nil {
		return string(r.Body)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return string(r.Body)
	}
	return sb.String()
}
