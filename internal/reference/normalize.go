// Package reference holds the read-only lookup tables loaded once per batch:
// the non-business-day calendar and the branch → channel table.
package reference

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey trims and uppercases a lookup key. Input is NFC-normalized first
// so "SEDE MEDELLÍN" typed with a combining accent matches the precomposed form.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return ""
	}
	return cases.Upper(language.Spanish).String(s)
}
