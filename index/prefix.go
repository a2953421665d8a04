// Package index maintains the secondary indexes of orbits: name prefix,
// container (sphere) and parent-child edges. Records are never rewritten;
// edges are created on write and relocated on update, and every read
// re-resolves edge targets to the latest record.
package index

import (
	"strings"
	"unicode/utf8"

	"github.com/teranos/orbits/errors"
)

// PrefixLength is the number of runes in a prefix key.
const PrefixLength = 3

// prefixRoot namespaces prefix keys in the edge index.
const prefixRoot = "all_orbits."

// PrefixKey derives the search key of a name: its first three runes,
// lower-cased.
func PrefixKey(name string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if utf8.RuneCountInString(lower) < PrefixLength {
		return "", errors.WithHintf(
			errors.Wrapf(errors.ErrInvalidName, "%q is shorter than %d characters", name, PrefixLength),
			"names need at least %d characters to be searchable", PrefixLength,
		)
	}
	var b strings.Builder
	n := 0
	for _, r := range lower {
		if n == PrefixLength {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String(), nil
}

// PrefixSource is the edge source key for a prefix.
func PrefixSource(prefix string) string {
	return prefixRoot + prefix
}

// hasNamePrefix reports whether name starts with query, ignoring case.
func hasNamePrefix(name, query string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(name)), strings.ToLower(strings.TrimSpace(query)))
}
