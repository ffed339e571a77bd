package parser

import (
	"regexp"
	"strings"
)

var normalizeRegex = regexp.MustCompile(`[^\p{L}0-9+!＊！＋]`)

// Normalize canonicalizes a display name for identity comparison: strip
// punctuation and whitespace, lowercase. Falls back to the trimmed input when
// stripping would leave nothing, so names made entirely of punctuation still
// get a stable key.
func Normalize(name string) string {
	normalized := normalizeRegex.ReplaceAllString(strings.ToLower(name), "")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return strings.TrimSpace(name)
	}
	return normalized
}

// NormalizePath makes path separators uniform so paths compare equal across
// platforms.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}
