package metadata

import (
	"path"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// notableTags lists the EXIF tags kept in download outcomes. Anything else
// in the image is ignored.
var notableTags = map[string]struct{}{
	"Make":               {},
	"Model":              {},
	"SerialNumber":       {},
	"BodySerialNumber":   {},
	"Software":           {},
	"Artist":             {},
	"Copyright":          {},
	"DateTime":           {},
	"DateTimeOriginal":   {},
	"GPSLatitude":        {},
	"GPSLatitudeRef":     {},
	"GPSLongitude":       {},
	"GPSLongitudeRef":    {},
	"HostComputer":       {},
	"ProcessingSoftware": {},
}

// SupportsEXIF reports whether name has an extension that may carry EXIF.
func SupportsEXIF(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".tif", ".tiff", ".png":
		return true
	default:
		return false
	}
}

// EXIF returns the notable EXIF tags found in data. It returns nil when
// the data carries no EXIF block or the block cannot be parsed. When a tag
// appears more than once, the first occurrence wins.
func EXIF(data []byte) map[string]string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	tags := make(map[string]string)
	for _, entry := range entries {
		if _, ok := notableTags[entry.TagName]; !ok {
			continue
		}
		if _, seen := tags[entry.TagName]; seen {
			continue
		}
		value := strings.TrimSpace(entry.Formatted)
		if value == "" {
			continue
		}
		tags[entry.TagName] = value
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
