package palette

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/graphemes"
)

// Graphemes splits s into user-perceived characters. A flag or a family
// emoji built from several code points is a single element.
func Graphemes(s string) []string {
	var out []string
	g := graphemes.FromString(s)
	for g.Next() {
		out = append(out, g.Value())
	}
	return out
}

// IsEmoji reports whether the grapheme cluster g is drawn as an emoji.
// Unicode has no cheap property lookup for this in the standard tables, so
// presentation selectors and the emoji blocks are checked directly.
func IsEmoji(g string) bool {
	if g == "" {
		return false
	}
	if strings.ContainsRune(g, '\uFE0F') || strings.ContainsRune(g, '\u20E3') {
		return true
	}
	r := []rune(g)[0]
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	}
	return false
}

// Dedupe keeps the emoji clusters of s in order, dropping repeats and
// anything that is not an emoji.
func Dedupe(s string) string {
	seen := make(map[string]bool)
	var b strings.Builder
	for _, g := range Graphemes(s) {
		if !IsEmoji(g) || seen[g] {
			continue
		}
		seen[g] = true
		b.WriteString(g)
	}
	return b.String()
}
