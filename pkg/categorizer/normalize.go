package categorizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares text for matching: accents are removed ("reunión" becomes
// "reunion"), letters are lower-cased, runs of whitespace collapse to a single
// space and the result is trimmed. Keywords go through the same function when
// they are stored, so both sides of a comparison share one representation.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		// transform only fails on invalid input state; fall back to the raw text
		stripped = text
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// NormalizeKeywords normalizes every keyword, drops empty entries and removes
// duplicates while keeping the order of first occurrence.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		n := Normalize(kw)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// NormalizeName returns the comparison key for a category name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SplitKeywords parses a delimiter separated keyword list ("reunion, oficina").
func SplitKeywords(text, sep string) []string {
	var out []string
	for _, raw := range strings.Split(text, sep) {
		if kw := strings.TrimSpace(raw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
