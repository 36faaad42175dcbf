// Package matrix pulls a pressing's matrix / catalogue code out of raw OCR text.
package matrix

import (
	"regexp"
	"strings"
)

// rules are tried in order and the first rule that matches anywhere in the
// text wins, even if a later rule would match earlier in the text.
var rules = []*regexp.Regexp{
	// generic label code: ABC-12345-A1, WX 1234 B, ...
	regexp.MustCompile(`[A-Z]{2,4}\s?-?\s?\d{3,6}\s?[-\x{2013}]?\s?[A-Z0-9]{1,3}`),
	// legacy Capitol style: ST-A-12345, ST A-12345
	regexp.MustCompile(`ST[- ]?[A-Z]-\d{5}`),
}

// Extract returns the first candidate code found in text with spaces removed.
// OCR noise goes straight through: there is no fuzzy matching or scoring.
func Extract(text string) (string, bool) {
	for _, rule := range rules {
		if match := rule.FindString(text); match != "" {
			return strings.ReplaceAll(match, " ", ""), true
		}
	}
	return "", false
}
