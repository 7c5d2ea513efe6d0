package feed

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// encodingDeclRe matches the encoding pseudo-attribute of the XML declaration
var encodingDeclRe = regexp.MustCompile(`(?i)^(\x{FEFF}?\s*<\?xml[^>]*?)\s+encoding\s*=\s*(?:"[^"]*"|'[^']*')`)

// Decode converts a raw feed body from the named legacy encoding to UTF-8.
// Byte sequences which can't be decoded are dropped, never reported as errors.
func Decode(body []byte, label string) (string, error) {
	enc, name := charset.Lookup(strings.TrimSpace(label))
	if enc == nil {
		return "", fmt.Errorf("unknown encoding %q", label)
	}

	if name == "utf-8" {
		return strings.ToValidUTF8(string(body), ""), nil
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}

	// legacy charsets have no U+FFFD, so any occurrence marks an undecodable sequence
	text := strings.ReplaceAll(string(decoded), string(utf8.RuneError), "")
	return strings.ToValidUTF8(text, ""), nil
}

// StripEncodingDecl removes the encoding declaration from the XML prolog.
// It must be applied to already decoded text, otherwise the parser would try to decode it again.
func StripEncodingDecl(doc string) string {
	return encodingDeclRe.ReplaceAllString(doc, "$1")
}
