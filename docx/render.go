package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Render substitutes values into a normalized package. Every occurrence of
// {name} anywhere in the document body receives the same value; values are
// XML-escaped before insertion so the document stays well-formed.
//
// A placeholder present in the document text but absent from values is a
// render error wrapping ErrMissingValue. A corrupt archive yields
// ErrMalformedPackage.
func Render(pkg []byte, values map[string]string) ([]byte, error) {
	r, doc, err := readDocument(pkg)
	if err != nil {
		return nil, err
	}

	for name, value := range values {
		needle := []byte("{" + name + "}")
		doc = bytes.ReplaceAll(doc, needle, escapeXML(value))
	}

	// Anything still matching the curly syntax in the visible text was a
	// placeholder the caller did not cover.
	for _, name := range curlyNames(flattenText(doc)) {
		return nil, fmt.Errorf("docx: render %q: %w", name, ErrMissingValue)
	}

	return rewriteDocument(r, doc)
}

func escapeXML(s string) []byte {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// EscapeText only fails on writer errors; bytes.Buffer has none.
		return []byte(strings.ReplaceAll(s, "&", "&amp;"))
	}
	return buf.Bytes()
}
