// Package markers parses comma-separated task marker configuration into sets.
package markers

import "strings"

// Set is an unordered collection of case-sensitive marker tokens.
type Set map[string]struct{}

// Parse splits a comma-separated configuration string into a Set.
// Tokens are trimmed of surrounding whitespace; empty tokens are dropped.
// An empty string yields an empty (non-nil) set. Parsing is idempotent:
// the same input always produces an equal set.
func Parse(s string) Set {
	out := make(Set)
	if s == "" {
		return out
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// Contains reports whether marker is in the set.
func (s Set) Contains(marker string) bool {
	_, ok := s[marker]
	return ok
}

// Equal reports whether both sets hold exactly the same tokens.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for tok := range s {
		if _, ok := other[tok]; !ok {
			return false
		}
	}
	return true
}
