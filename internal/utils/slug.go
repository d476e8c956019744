package utils

import (
	"strings"
	"unicode"
)

// Slugify lowercases a tour name and collapses every run of non-alphanumeric
// characters into a single hyphen, e.g. "The Forest Hiker" -> "the-forest-hiker".
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
