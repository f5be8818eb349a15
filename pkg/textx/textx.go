// Package textx provides small text utilities used across the project.
package textx

import (
	"strconv"
	"strings"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// SingleLine sanitizes s and collapses every run of whitespace (including
// newlines) into one space, so user text cannot break a prompt bullet.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(SanitizeText(s)), " ")
}

// Slug lowercases s and keeps only ASCII letters and digits.
func Slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ItemID derives the stable identifier of a title released in year.
func ItemID(title string, year int) string {
	return Slug(title) + strconv.Itoa(year)
}
