package download

import "errors"

// ErrInvalidName is returned by FileName when a URL has no usable final
// path segment.
var ErrInvalidName = errors.New("URL has no usable file name")
