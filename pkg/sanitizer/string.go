package sanitizer

import (
	"strings"
	"unicode"
)

// collapseSpaces trims s and folds every whitespace run into one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func NormalizeName(name string) string {
	return collapseSpaces(name)
}

// NormalizeCity collapses whitespace and drops control characters, which
// the geocoder would otherwise receive verbatim in its query string.
func NormalizeCity(city string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, city)
	return collapseSpaces(cleaned)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
