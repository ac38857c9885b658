package util

import "fmt"

// DefaultLogMaxLen caps command output copied into log lines and errors.
const DefaultLogMaxLen = 256

// TruncateLog truncates long strings for logging, noting the original size.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is TruncateLog for command output with DefaultLogMaxLen.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}

// Truncate shortens s to at most max runes for display, ending with "…".
// Event summaries are often not ASCII, so this never splits a character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
