// Package classify trains a model on the user's categorized transaction
// history and predicts counter accounts for new, uncategorized candidates.
package classify

import (
	"regexp"
	"strings"
)

var (
	// Dots forming abbreviations between single letters, e.g. "a.b.c.".
	abbrevDotRe = regexp.MustCompile(`\b([a-z])\.(?:([a-z])\.)*`)
	// Anything that is not a letter or digit becomes a space.
	symbolRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

var transliterations = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"ß", "ss",
	"é", "e",
)

// NormalizeDescription canonicalizes a payee/narration string for feature
// extraction and mapping lookups: lowercase, abbreviation dots removed,
// symbols and whitespace collapsed, common German characters transliterated.
func NormalizeDescription(s string) string {
	s = strings.ToLower(s)
	s = abbrevDotRe.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ReplaceAll(m, ".", "")
	})
	s = symbolRe.ReplaceAllString(s, " ")
	s = transliterations.Replace(s)
	return strings.TrimSpace(s)
}
