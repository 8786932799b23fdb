package metadata

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// pdfInfoFields are the document information dictionary entries kept in
// download outcomes. Values may be literal "(...)" or hex "<...>" strings.
var pdfInfoFields = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"Author", regexp.MustCompile(`/Author\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)},
	{"Creator", regexp.MustCompile(`/Creator\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)},
	{"Producer", regexp.MustCompile(`/Producer\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)},
	{"Title", regexp.MustCompile(`/Title\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)},
	{"Subject", regexp.MustCompile(`/Subject\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)},
	{"Keywords", regexp.MustCompile(`/Keywords\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)},
	{"CreationDate", regexp.MustCompile(`/CreationDate\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)},
	{"ModDate", regexp.MustCompile(`/ModDate\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)},
}

// pdfXMPFields are read from an embedded XMP packet when present.
var pdfXMPFields = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"XMPCreatorTool", regexp.MustCompile(`<xmp:CreatorTool>([^<]+)<`)},
	{"XMPDocumentID", regexp.MustCompile(`<xmpMM:DocumentID>([^<]+)<`)},
	{"XMPInstanceID", regexp.MustCompile(`<xmpMM:InstanceID>([^<]+)<`)},
}

// pdfEscapes maps the escape sequences of PDF literal strings.
var pdfEscapes = strings.NewReplacer(
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\(`, "(",
	`\)`, ")",
	`\\`, `\`,
)

// PDF returns the document information of a PDF file. Only the
// uncompressed info dictionary and XMP packet are read, which covers what
// most producers write. It returns nil when data is not a PDF or carries
// no readable fields.
func PDF(data []byte) map[string]string {
	// The header may follow a few bytes of junk.
	if !strings.Contains(string(data[:min(len(data), 1024)]), "%PDF-") {
		return nil
	}
	content := string(data)

	fields := make(map[string]string)
	for _, f := range pdfInfoFields {
		m := f.pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		var value string
		if m[2] != "" {
			value = decodePDFHexString(m[2])
		} else {
			value = decodePDFLiteral(m[1])
		}
		if value = strings.TrimSpace(value); value != "" {
			fields[f.name] = value
		}
	}
	for _, f := range pdfXMPFields {
		if m := f.pattern.FindStringSubmatch(content); m != nil {
			if value := strings.TrimSpace(m[1]); value != "" {
				fields[f.name] = value
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// decodePDFLiteral decodes a literal string, including the UTF-16BE form
// that starts with a byte order mark.
func decodePDFLiteral(s string) string {
	s = pdfEscapes.Replace(s)
	if strings.HasPrefix(s, "\xfe\xff") {
		return decodeUTF16BE([]byte(s))
	}
	return s
}

// decodePDFHexString decodes a hex string. An odd final digit is padded
// with zero as PDF readers do.
func decodePDFHexString(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if len(s)%2 == 1 {
		s += "0"
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ""
	}
	if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
		return decodeUTF16BE(raw)
	}
	return string(raw)
}

// decodeUTF16BE decodes BOM-prefixed UTF-16BE. A dangling final byte is
// dropped.
func decodeUTF16BE(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	decoded, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(decoded)
}
