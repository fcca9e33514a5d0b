package query

import "strings"

// Shadow-crossing marker tokens. Their presence anywhere in a selector
// string requests shadow-piercing traversal for the entire query, not just
// the marked clause.
const (
	MarkerShadow = ":shadow"
	MarkerPierce = ">>>"
)

// HasMarker reports whether the selector contains a shadow-crossing marker.
func HasMarker(selector string) bool {
	return strings.Contains(selector, MarkerShadow) ||
		strings.Contains(selector, MarkerPierce)
}

// CutMarker strips every marker token from the selector and reports whether
// any was present. Tokens are replaced by a single space so "div>>>span"
// degrades to the descendant form "div span"; surrounding whitespace is
// collapsed. The cleaned selector is what reaches the native matcher.
func CutMarker(selector string) (string, bool) {
	if !HasMarker(selector) {
		return selector, false
	}
	s := strings.ReplaceAll(selector, MarkerShadow, " ")
	s = strings.ReplaceAll(s, MarkerPierce, " ")
	return strings.Join(strings.Fields(s), " "), true
}
