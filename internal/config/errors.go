package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoBaseURL is returned when no page URL is given.
	ErrNoBaseURL = errors.New("no URL specified: provide the page to crawl")

	// ErrInvalidBaseURL is returned when the page URL is not absolute http(s).
	ErrInvalidBaseURL = errors.New("invalid URL: must be an absolute http or https URL")

	// ErrInvalidParallelism is returned when parallelism is not positive.
	ErrInvalidParallelism = errors.New("invalid parallelism: must be positive")

	// ErrInvalidTimeout is returned when the timeout is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidLogFormat is returned when the log format is neither text nor json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrDestinationNotFound is returned when the destination does not exist.
	ErrDestinationNotFound = errors.New("destination directory does not exist")

	// ErrDestinationNotDir is returned when the destination is not a directory.
	ErrDestinationNotDir = errors.New("destination is not a directory")
)
