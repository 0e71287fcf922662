// Package util provides shared string helpers.
package util

// MaxDetailRunes bounds model output echoed into error details and logs.
const MaxDetailRunes = 2000

// TruncateRunes truncates s to at most maxRunes Unicode code points,
// appending "..." if truncation occurred.
// If maxRunes <= 0, s is returned unchanged.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// Detail shortens model output for error payloads.
func Detail(s string) string { return TruncateRunes(s, MaxDetailRunes) }
