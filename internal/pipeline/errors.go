package pipeline

import "errors"

var (
	// ErrPageFetchFailed is returned when the base page cannot be fetched.
	// No download has been dispatched when it is returned.
	ErrPageFetchFailed = errors.New("failed to fetch page")

	// ErrInvalidBaseURL is returned when the base URL is not an absolute URL.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrInvalidParallelism is returned when the parallelism bound is not positive.
	ErrInvalidParallelism = errors.New("parallelism must be positive")
)
