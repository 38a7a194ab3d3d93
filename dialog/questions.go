package dialog

import (
	"fmt"
	"strings"
)

// questionRow maps a predicate over the lower-cased placeholder name to a
// question template. Rows are evaluated top to bottom, first match wins.
type questionRow struct {
	match    func(name string) bool
	question string
}

func keyword(words ...string) func(string) bool {
	return func(name string) bool {
		for _, w := range words {
			if strings.Contains(name, w) {
				return true
			}
		}
		return false
	}
}

var questionTable = []questionRow{
	{keyword("company", "organization", "organisation", "employer"), "What is the company name for %q?"},
	{keyword("date", "deadline", "expiry"), "What date should I use for %q? (for example 01/15/2024)"},
	{keyword("amount", "price", "cost", "total", "fee", "salary"), "What amount should I put for %q?"},
	{keyword("email", "e-mail"), "What email address should I use for %q?"},
	{keyword("phone", "tel", "mobile"), "What phone number should I use for %q?"},
	{keyword("address", "city", "street", "location"), "What address should I use for %q?"},
	{keyword("name", "signatory", "recipient", "client"), "What name should I use for %q?"},
}

const defaultQuestion = "What value should I fill in for %q?"

const completionPrompt = "All placeholders are filled. Say \"generate\" when you want the completed document."

// NextQuestion returns the prompt for the current placeholder, or the
// completion prompt when every placeholder is filled.
func NextQuestion(ps []Placeholder) string {
	i := Current(ps)
	if i < 0 {
		return completionPrompt
	}
	return questionFor(ps[i].Name)
}

func questionFor(name string) string {
	lower := strings.ToLower(name)
	for _, row := range questionTable {
		if row.match(lower) {
			return fmt.Sprintf(row.question, name)
		}
	}
	return fmt.Sprintf(defaultQuestion, name)
}
