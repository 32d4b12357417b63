package util

import "strings"

// Preview truncates chunk content for display. Truncation never changes
// the underlying citation; it only shortens what the client renders.
func Preview(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 200
	}
	s = strings.TrimSpace(SanitizeText(s))
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
