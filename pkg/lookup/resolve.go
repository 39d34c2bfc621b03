package lookup

import (
	"fmt"
	"strings"

	"github.com/authzed/connector-archive/pkg/metadata"
)

// ResolveExact returns key if the table has a row for it.
func ResolveExact(key string, t *Table) (string, bool) {
	if _, ok := t.Get(key); ok {
		return key, true
	}
	return "", false
}

// ResolveByContainment returns the first key, in table order, that is a
// substring of search. When several keys match, the earliest added wins.
func ResolveByContainment(search string, t *Table) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, k := range t.keys {
		if strings.Contains(search, k) {
			return k, true
		}
	}
	return "", false
}

// ResolveComposite returns the composite key of key1 and key2 if the table
// has a row for it. No partial matching is attempted.
func ResolveComposite(key1, key2 string, t *Table) (string, bool) {
	return ResolveExact(CompositeKey(key1, key2), t)
}

// Resolve tries an exact match first and falls back to containment.
func Resolve(keyOrSearch string, t *Table) (string, bool) {
	if k, ok := ResolveExact(keyOrSearch, t); ok {
		return k, true
	}
	return ResolveByContainment(keyOrSearch, t)
}

// LookupAttribute resolves keyOrSearch and returns the attribute from the
// matching row. Misses are not errors.
func LookupAttribute(keyOrSearch, attribute string, t *Table) (string, bool) {
	return MatchAuto.Lookup(attribute, t, keyOrSearch)
}

// LookupCompositeAttribute returns the attribute from the row stored under
// the composite key of key1 and key2.
func LookupCompositeAttribute(key1, key2, attribute string, t *Table) (string, bool) {
	return MatchComposite.Lookup(attribute, t, key1, key2)
}

// RequireAttribute is LookupAttribute for mandatory fields.
func RequireAttribute(keyOrSearch, attribute string, t *Table) (string, error) {
	v, ok := LookupAttribute(keyOrSearch, attribute, t)
	if !ok {
		return "", &metadata.MappingNotFoundError{Search: keyOrSearch, Attribute: attribute}
	}
	return v, nil
}

// Match selects how a search string is turned into a table key.
type Match string

const (
	// MatchAuto tries an exact match, then containment.
	MatchAuto Match = "auto"
	// MatchExact only accepts the search string itself as key.
	MatchExact Match = "exact"
	// MatchContains accepts the first key contained in the search string.
	MatchContains Match = "contains"
	// MatchComposite joins two search strings into a composite key.
	MatchComposite Match = "composite"
)

// ParseMatch validates a match name; the empty string means MatchAuto.
func ParseMatch(s string) (Match, error) {
	switch m := Match(strings.ToLower(s)); m {
	case "":
		return MatchAuto, nil
	case MatchAuto, MatchExact, MatchContains, MatchComposite:
		return m, nil
	default:
		return "", fmt.Errorf("unknown match strategy %q", s)
	}
}

// Arity is the number of search strings the strategy consumes.
func (m Match) Arity() int {
	if m == MatchComposite {
		return 2
	}
	return 1
}

// Resolve turns the search strings into a table key.
func (m Match) Resolve(t *Table, search ...string) (string, bool) {
	if len(search) != m.Arity() {
		return "", false
	}
	switch m {
	case MatchExact:
		return ResolveExact(search[0], t)
	case MatchContains:
		return ResolveByContainment(search[0], t)
	case MatchComposite:
		return ResolveComposite(search[0], search[1], t)
	default:
		return Resolve(search[0], t)
	}
}

// Lookup resolves the search strings and reads attribute from the row.
func (m Match) Lookup(attribute string, t *Table, search ...string) (string, bool) {
	key, ok := m.Resolve(t, search...)
	if !ok {
		return "", false
	}
	row, _ := t.Get(key)
	v, ok := row[attribute]
	return v, ok
}
