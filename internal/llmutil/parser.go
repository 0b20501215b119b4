// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrNoJSONObject is returned when a response holds no '{' ... '}' span.
var ErrNoJSONObject = errors.New("no JSON object in model output")

// ExtractJSONObject returns the substring from the first '{' to the last '}'
// inclusive. Models often wrap the object in prose or a markdown fence; both
// are cut away by this slice.
//
// Braces inside string values or in trailing prose are not treated
// specially, so text like `{...} see {note}` yields a span that fails to
// decode. That is a known limitation of the heuristic.
func ExtractJSONObject(response string) (string, error) {
	first := strings.IndexByte(response, '{')
	if first == -1 {
		return "", ErrNoJSONObject
	}
	last := strings.LastIndexByte(response, '}')
	if last < first {
		return "", ErrNoJSONObject
	}
	return response[first : last+1], nil
}

// Truncate shortens s to at most maxLen bytes, cutting on a rune boundary and
// appending "...". A non-positive maxLen disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
