package index

import (
	"strings"
	"unicode"
)

// Tokenize lowercases and splits into alphanumeric runs. The same function
// runs at index build and at query time; the two must never diverge.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}

	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
