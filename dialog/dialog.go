// Package dialog drives the guided question/answer exchange that fills a
// document's placeholders one at a time, in document order.
//
// Exactly one placeholder is open for editing at any moment: the first
// unfilled entry. There is no jumping ahead, no backtracking, and no editing
// of an already-filled value through this interface. Answers are stored
// verbatim; a date placeholder happily accepts "banana".
package dialog

import "strings"

// Placeholder is one fillable slot in a document.
type Placeholder struct {
	Name         string `json:"name"`
	OriginalText string `json:"original_text"`
	Filled       bool   `json:"filled"`
	Value        string `json:"value,omitempty"`
}

// NewPlaceholders builds placeholder records from extracted names.
// OriginalText records the normalized token as it appears in the document.
func NewPlaceholders(names []string) []Placeholder {
	ps := make([]Placeholder, len(names))
	for i, name := range names {
		ps[i] = Placeholder{Name: name, OriginalText: "{" + name + "}"}
	}
	return ps
}

// Current returns the index of the first unfilled placeholder, or -1 when
// every placeholder is filled.
func Current(ps []Placeholder) int {
	for i := range ps {
		if !ps[i].Filled {
			return i
		}
	}
	return -1
}

// FilledCount returns how many placeholders carry a value.
func FilledCount(ps []Placeholder) int {
	n := 0
	for i := range ps {
		if ps[i].Filled {
			n++
		}
	}
	return n
}

// ApplyAnswer stores answer verbatim on the current placeholder and marks it
// filled. It reports whether a placeholder was open; when none is, the slice
// is left untouched.
func ApplyAnswer(ps []Placeholder, answer string) bool {
	i := Current(ps)
	if i < 0 {
		return false
	}
	ps[i].Value = answer
	ps[i].Filled = true
	return true
}

// Values returns the name → value map for rendering. Only filled
// placeholders contribute.
func Values(ps []Placeholder) map[string]string {
	m := make(map[string]string, len(ps))
	for i := range ps {
		if ps[i].Filled {
			m[ps[i].Name] = ps[i].Value
		}
	}
	return m
}

// affirmatives is the fixed set of confirmation utterances, matched
// case-insensitively after trimming.
var affirmatives = map[string]bool{
	"yes":      true,
	"y":        true,
	"yeah":     true,
	"yep":      true,
	"ok":       true,
	"okay":     true,
	"sure":     true,
	"go ahead": true,
	"generate": true,
	"do it":    true,
}

// IsConfirmation reports whether msg is an affirmative answer to the
// "generate the document?" prompt. Any message mentioning "generate"
// counts, so "please generate document" confirms while "maybe later"
// does not.
func IsConfirmation(msg string) bool {
	m := strings.ToLower(strings.TrimSpace(msg))
	if affirmatives[m] {
		return true
	}
	return strings.Contains(m, "generate")
}
