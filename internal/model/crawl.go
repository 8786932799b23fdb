package model

import (
	"fmt"
	"time"
)

// CrawlRequest describes a single crawl. It is constructed once per
// invocation and not modified while the crawl runs.
type CrawlRequest struct {
	// BaseURL is the page whose links are extracted.
	BaseURL string `json:"base_url"`

	// Categories selects the file types to extract, in extraction order.
	Categories []Category `json:"categories"`

	// Destination is an existing directory receiving the downloads.
	Destination string `json:"destination"`

	// MaxParallelism bounds the number of downloads in flight.
	MaxParallelism int `json:"max_parallelism"`
}

// ErrorKind classifies a failed download.
type ErrorKind int

const (
	// ErrorKindNone marks a successful outcome.
	ErrorKindNone ErrorKind = iota

	// ErrorKindFetchFailed covers transport errors and non-success statuses.
	ErrorKindFetchFailed

	// ErrorKindInvalidName means the URL has no usable final path segment
	// to name the local file after.
	ErrorKindInvalidName

	// ErrorKindWriteFailed means the body could not be written to disk.
	ErrorKindWriteFailed
)

// String returns the name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindFetchFailed:
		return "FetchFailed"
	case ErrorKindInvalidName:
		return "InvalidName"
	case ErrorKindWriteFailed:
		return "WriteFailed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name so JSON reports stay readable.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for _, kind := range []ErrorKind{ErrorKindNone, ErrorKindFetchFailed, ErrorKindInvalidName, ErrorKindWriteFailed} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// DownloadOutcome is the result of one download attempt.
// Exactly one outcome exists per dispatched URL.
type DownloadOutcome struct {
	// SourceURL is the absolute URL that was fetched.
	SourceURL string `json:"source_url"`

	// LocalPath is the written file. Empty on failure.
	LocalPath string `json:"local_path,omitempty"`

	// Bytes is the number of bytes written. Zero on failure.
	Bytes int64 `json:"bytes,omitempty"`

	// Checksum is the hex encoded SHA3-256 digest of the written body.
	Checksum string `json:"checksum,omitempty"`

	// Metadata holds notable EXIF tags of images or the document information
	// of PDFs when metadata inspection is enabled.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Error is ErrorKindNone on success.
	Error ErrorKind `json:"error,omitempty"`

	// Reason is a human readable explanation of the failure.
	Reason string `json:"reason,omitempty"`

	// Duration is the wall-clock time the attempt took.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the file was written.
func (o DownloadOutcome) Succeeded() bool {
	return o.Error == ErrorKindNone
}
