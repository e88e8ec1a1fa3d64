package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName produces the lookup key for a free-text drug name: NFKC
// normalized, case-folded, trimmed, with internal whitespace runs collapsed
// to one space. Control characters count as whitespace. The result may be
// empty.
func NormalizeName(s string) string {
	// cases.Caser is stateful, so one is built per call.
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " ")
}
