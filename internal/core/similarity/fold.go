package similarity

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold returns a case- and diacritic-insensitive key for s: "Crème" and
// "CREME" fold to the same key.
func Fold(s string) string {
	// transformers keep internal state, so each call builds its own chain
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}
