package provider

import (
	"regexp"
	"strings"
)

// isbnPrefixRegex matches common ISBN prefixes like "ISBN-13:", "ISBN-10:", "ISBN:".
var isbnPrefixRegex = regexp.MustCompile(`(?i)^(isbn-13|isbn-10|isbn)\s*:\s*`)

var isbnCleanRegex = regexp.MustCompile(`[^0-9xX]`)

// CleanISBN extracts a bare ISBN from a catalog value such as
// "ISBN-13: 978-89-0000-000-0 (pbk.)".
func CleanISBN(raw string) string {
	s := isbnPrefixRegex.ReplaceAllString(strings.TrimSpace(raw), "")
	// Qualifiers like "(pbk.)" follow the number after a space.
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	return isbnCleanRegex.ReplaceAllString(s, "")
}

// matchesAny reports whether any of the values contains keyword, ignoring case.
func matchesAny(keyword string, values ...string) bool {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if k == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), k) {
			return true
		}
	}
	return false
}
