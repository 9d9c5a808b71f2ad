package text

import (
	"regexp"
	"strings"
)

var (
	markupRe     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRe      = regexp.MustCompile(`[,.\-&]`)
	suffixRe     = regexp.MustCompile(`\b(?:INC|LTD|LLC|CORP|CO|COMPANY|PLC|LIMITED)\b`)
)

// CleanText strips markup-like tags and collapses whitespace runs to single
// spaces. Total function: any input yields a trimmed, single-spaced string.
func CleanText(s string) string {
	s = markupRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeCompany produces the canonical key for a company name: uppercase,
// punctuation replaced with spaces, legal-entity suffixes removed as whole
// words, whitespace collapsed. Idempotent — two spellings of the same company
// must normalize identically, the retrieval filter depends on it.
func NormalizeCompany(name string) string {
	name = strings.ToUpper(name)
	name = punctRe.ReplaceAllString(name, " ")
	name = suffixRe.ReplaceAllString(name, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(name, " "))
}
