// Package normalizer canonicalizes identifier fields (article, channel and
// category codes) so that the same real-world code always maps to the same
// key regardless of how a source system spelled it.
package normalizer

import "strings"

// EmptyKey is the sentinel returned for empty or all-invalid input. It
// contains characters the normalizer strips ('(' and ')'), so no valid
// normalized key can ever collide with it.
const EmptyKey = "(VACIO)"

// Key canonicalizes a raw identifier: uppercase, trim, collapse internal
// whitespace runs to a single space, and drop every character outside
// A–Z, 0–9, hyphen and space. Idempotent: Key(Key(s)) == Key(s).
func Key(raw string) string {
	// The sentinel is its own canonical form; without this check a second
	// pass would strip its parentheses and break idempotence.
	if raw == EmptyKey {
		return EmptyKey
	}

	s := strings.ToUpper(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ', r == '\t', r == '\n', r == '\r':
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// Accented letters, punctuation, control chars: dropped.
		}
	}

	key := strings.TrimRight(b.String(), " ")
	if key == "" {
		return EmptyKey
	}
	return key
}

// IsEmpty reports whether key is the EmptyKey sentinel.
func IsEmpty(key string) bool { return key == EmptyKey }
