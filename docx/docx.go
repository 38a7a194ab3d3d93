// Package docx handles OOXML word-processing packages for the formulaire
// service: placeholder normalization, extraction, and value substitution.
//
// A package is a ZIP archive whose word/document.xml entry carries the
// document body. Three placeholder syntaxes occur in the wild ({name},
// $[name], and [name]) and legacy templates mix the bracket styles with
// the curly one. Normalize rewrites the bracket styles to curly and returns
// the placeholder names in document order; Render substitutes values for
// every curly occurrence. Auxiliary archive entries (styles, relationships,
// media) pass through byte-for-byte.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const documentEntry = "word/document.xml"

// ErrMalformedPackage is returned when the input is not a readable ZIP
// archive or word/document.xml is missing.
var ErrMalformedPackage = errors.New("docx: malformed package")

// ErrNoPlaceholders is returned when no placeholder survives filtering
// under any extraction strategy.
var ErrNoPlaceholders = errors.New("docx: no placeholders found")

// ErrMissingValue is returned by Render when the document still contains a
// placeholder that the value map does not cover.
var ErrMissingValue = errors.New("docx: placeholder without value")

// readDocument opens pkg as a ZIP archive and returns the word/document.xml
// content together with the parsed reader.
func readDocument(pkg []byte) (*zip.Reader, []byte, error) {
	r, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == documentEntry {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, nil, fmt.Errorf("%w: %s not found in archive", ErrMalformedPackage, documentEntry)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", ErrMalformedPackage, documentEntry, err)
	}
	defer rc.Close()

	doc, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrMalformedPackage, documentEntry, err)
	}
	return r, doc, nil
}

// rewriteDocument produces a new archive with word/document.xml replaced by
// doc. Every other entry is copied raw, preserving compressed bytes and
// entry order.
func rewriteDocument(r *zip.Reader, doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range r.File {
		if f.Name == documentEntry {
			hdr := &zip.FileHeader{
				Name:     f.Name,
				Method:   f.Method,
				Modified: f.Modified,
			}
			out, err := w.CreateHeader(hdr)
			if err != nil {
				return nil, fmt.Errorf("docx: rewrite %s: %w", f.Name, err)
			}
			if _, err := out.Write(doc); err != nil {
				return nil, fmt.Errorf("docx: rewrite %s: %w", f.Name, err)
			}
			continue
		}
		if err := w.Copy(f); err != nil {
			return nil, fmt.Errorf("docx: copy %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("docx: close archive: %w", err)
	}
	return buf.Bytes(), nil
}
