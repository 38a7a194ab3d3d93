package docx

import (
	"bytes"
	"regexp"
	"strings"
)

// Extraction strategies, in fixed precedence order. Exactly one strategy's
// matches are ever returned: the first that yields at least one surviving
// name wins, never a union. Templates are expected to use one convention
// consistently; documents may also mix literal brackets with real
// placeholders, so a "smarter" merge would misfire.
var strategies = []struct {
	name string
	re   *regexp.Regexp
}{
	{"curly", regexp.MustCompile(`\{([^{}]*)\}`)},
	{"dollar-bracket", regexp.MustCompile(`\$\[([^\[\]]*)\]`)},
	{"bracket", regexp.MustCompile(`\[([^\[\]]*)\]`)},
}

// bracketToken matches both bracket syntaxes during normalization, with the
// optional dollar prefix captured as part of the token.
var bracketToken = regexp.MustCompile(`\$?\[([^\[\]]*)\]`)

// runBreak is the markup between two consecutive text runs in a paragraph:
// the close of the current <w:t> and <w:r>, then the next run's open tag,
// optional run properties, and its <w:t>. Deleting one break folds the
// second run's text into the first.
const runBreak = `</w:t>(?:<w:[^>]*/>)*</w:r><w:r(?:\s[^>]*)?>(?:<w:rPr>.*?</w:rPr>)?<w:t(?:\s[^>]*)?>`

// splitToken matches a placeholder token opened in one run and continued in
// the next: an unclosed {, $[ or [ immediately before a run break.
var splitToken = regexp.MustCompile(`(?s)(\{[^{}<]*|\$?\[[^\[\]<]*)` + runBreak + `([^<]*)`)

// Normalize rewrites bracket-style placeholders ([name], $[name]) in the
// document body to curly style ({name}), then extracts the ordered list of
// unique placeholder names from the normalized document.
//
// The rewrite is a textual substitution over the raw XML, not a tree edit:
// both syntaxes must coexist in legacy templates but the renderer only
// understands curly syntax. Bracket tokens whose inner text fails the name
// filter are left untouched, so literal brackets survive. Tokens split
// across text runs are merged first, so every extracted name is contiguous
// in the normalized XML and replaceable by Render.
//
// Errors: ErrMalformedPackage if pkg is not a readable archive or the
// document entry is missing; ErrNoPlaceholders if nothing survives filtering
// under any strategy.
func Normalize(pkg []byte) ([]byte, []string, error) {
	r, doc, err := readDocument(pkg)
	if err != nil {
		return nil, nil, err
	}

	rewritten := normalizeBrackets(coalesceRuns(doc))

	normalized := pkg
	if !bytes.Equal(rewritten, doc) {
		normalized, err = rewriteDocument(r, rewritten)
		if err != nil {
			return nil, nil, err
		}
	}

	names := extractNames(flattenText(rewritten))
	if len(names) == 0 {
		return nil, nil, ErrNoPlaceholders
	}
	return normalized, names, nil
}

// coalesceRuns deletes run breaks that interrupt a placeholder token, so a
// token Word has split across runs (spell-check state, formatting edits)
// becomes contiguous text in the raw XML. Both the bracket rewrite and
// Render substitute over raw XML, so split tokens must be healed here. The
// merged text takes the first run's properties. Tokens spanning more than
// two runs converge over repeated passes.
func coalesceRuns(doc []byte) []byte {
	for {
		merged := splitToken.ReplaceAll(doc, []byte("${1}${2}"))
		if bytes.Equal(merged, doc) {
			return merged
		}
		doc = merged
	}
}

// normalizeBrackets rewrites valid [name] and $[name] tokens to {name}.
func normalizeBrackets(doc []byte) []byte {
	return bracketToken.ReplaceAllFunc(doc, func(tok []byte) []byte {
		inner := tok[bytes.IndexByte(tok, '[')+1 : len(tok)-1]
		if !validName(string(inner)) {
			return tok
		}
		out := make([]byte, 0, len(inner)+2)
		out = append(out, '{')
		out = append(out, inner...)
		out = append(out, '}')
		return out
	})
}

// extractNames applies the strategy cascade to flattened document text and
// returns the surviving names, deduplicated, in encounter order.
func extractNames(text string) []string {
	for _, s := range strategies {
		if names := matchNames(s.re, text); len(names) > 0 {
			return names
		}
	}
	return nil
}

// curlyNames extracts names under the curly strategy only. Render uses this
// to detect uncovered placeholders without the bracket fallbacks picking up
// literal bracket text.
func curlyNames(text string) []string {
	return matchNames(strategies[0].re, text)
}

func matchNames(re *regexp.Regexp, text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if !validName(name) {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// validName accepts a candidate placeholder name: non-empty after trimming
// and free of markup fragments that leak through imperfect tag-stripping.
func validName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, "<>") {
		return false
	}
	if strings.Contains(name, "w:") {
		return false
	}
	return true
}
