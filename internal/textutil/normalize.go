package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeKeyword lower-cases value, collapses whitespace, and trims leading
// and trailing punctuation. Returns "" when nothing meaningful remains.
func NormalizeKeyword(value string) string {
	folded := cases.Lower(language.Und).String(value)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	joined := strings.Join(fields, " ")
	return strings.TrimFunc(joined, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// CategoryLabel renders a category slug such as "health-fitness" for display.
// A cases.Caser keeps state between calls, so each call builds its own.
func CategoryLabel(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || unicode.IsSpace(r) })
	return cases.Title(language.English).String(strings.Join(words, " "))
}
