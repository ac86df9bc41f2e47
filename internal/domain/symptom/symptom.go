package symptom

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Separator delimits symptoms in free-text input.
const Separator = ","

// Canonical returns the canonical knowledge-base form of a single symptom
// name: NFKC-normalized, lowercased, with internal whitespace runs joined by
// one underscore. Blank input yields "".
func Canonical(name string) string {
	fields := strings.Fields(norm.NFKC.String(name))
	if len(fields) == 0 {
		return ""
	}
	// Casers keep state, so one per call.
	return cases.Lower(language.Und).String(strings.Join(fields, "_"))
}

// Normalize splits comma-delimited input and canonicalizes each token.
// Empty tokens are dropped; duplicates are kept.
func Normalize(raw string) []string {
	return NormalizeList([]string{raw})
}

// NormalizeList canonicalizes an ordered list of symptom strings. Elements
// may themselves be comma-delimited. A nil list yields an empty result.
func NormalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, tok := range strings.Split(item, Separator) {
			if c := Canonical(tok); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

// Set is an insertion-ordered set of canonical symptom names.
type Set struct {
	items []string
	index map[string]struct{}
}

// NewSet builds a Set from tokens, keeping the first occurrence of each.
func NewSet(tokens []string) Set {
	s := Set{
		items: make([]string, 0, len(tokens)),
		index: make(map[string]struct{}, len(tokens)),
	}
	for _, t := range tokens {
		if _, ok := s.index[t]; ok {
			continue
		}
		s.index[t] = struct{}{}
		s.items = append(s.items, t)
	}
	return s
}

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of distinct symptoms.
func (s Set) Len() int { return len(s.items) }

// Items returns the symptoms in insertion order.
func (s Set) Items() []string { return s.items }
