package validators

import "strings"

// SanitizeString normalizes free-text query input: surrounding whitespace is
// trimmed, control characters are dropped, and the result is capped at maxLen
// runes. Truncation counts runes so multi-byte input is never cut mid
// character.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < ' ' || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	return string(runes[:maxLen])
}
