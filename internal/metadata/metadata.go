// Package metadata extracts notable metadata from downloaded files:
// EXIF tags of images and the document information of PDF files.
package metadata

import (
	"path"
	"strings"
)

// Supports reports whether Inspect can read metadata from a file called name.
func Supports(name string) bool {
	return SupportsEXIF(name) || isPDF(name)
}

// Inspect returns the notable metadata of a downloaded file, choosing the
// reader by file extension. It returns nil for unsupported files.
func Inspect(name string, data []byte) map[string]string {
	switch {
	case SupportsEXIF(name):
		return EXIF(data)
	case isPDF(name):
		return PDF(data)
	default:
		return nil
	}
}

func isPDF(name string) bool {
	return strings.EqualFold(path.Ext(name), ".pdf")
}
