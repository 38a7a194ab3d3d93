package docx

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// ExtractText returns the flattened, tag-stripped text of the document body.
// Text runs within a paragraph are concatenated so a placeholder split
// across runs still reads contiguously; paragraphs are joined with newlines.
func ExtractText(pkg []byte) (string, error) {
	_, doc, err := readDocument(pkg)
	if err != nil {
		return "", err
	}
	return flattenText(doc), nil
}

// flattenText walks the document XML and collects the character data of
// <w:t> runs, paragraph by paragraph.
func flattenText(doc []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(doc))

	var out strings.Builder
	var current strings.Builder
	var inText bool
	var inParagraph bool

	flush := func() {
		text := current.String()
		current.Reset()
		if strings.TrimSpace(text) == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(text)
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				inText = true
			}

		case xml.CharData:
			if inText {
				current.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph {
					inParagraph = false
					flush()
				}
			}
		}
	}

	// Text outside any paragraph (rare, but headers in partial documents).
	if inParagraph || current.Len() > 0 {
		flush()
	}

	return out.String()
}
