package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrBadStatus is matched by every *StatusError.
	ErrBadStatus = errors.New("unsuccessful HTTP status")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrBodyTooLarge is returned when a body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// StatusError reports a response whose final status signals failure.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Is makes errors.Is(err, ErrBadStatus) true.
func (e *StatusError) Is(target error) bool {
	return target == ErrBadStatus
}
