package keys

import (
	"fmt"
	"strings"
	"unicode"
)

// Panel returns the cache key for panel n of the generation with the given
// fingerprint. Generations with equal fingerprints share keys.
func Panel(namespace string, fingerprint uint64, n int) string {
	ns := sanitize(strings.TrimSpace(namespace))
	if ns == "" {
		ns = "panels"
	}
	return fmt.Sprintf("%s:f=%016x:p=%04d", ns, fingerprint, n)
}

// PanelRange returns the keys of panels from..to, both inclusive.
func PanelRange(namespace string, fingerprint uint64, from, to int) []string {
	from = max(from, 1)
	if to < from {
		return nil
	}
	out := make([]string, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, Panel(namespace, fingerprint, n))
	}
	return out
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
