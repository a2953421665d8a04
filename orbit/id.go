// Package orbit defines the entities of the index (orbits and spheres), the
// immutable records that store them and the content hashing that names them.
package orbit

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/teranos/orbits/errors"
)

// ID is a content-addressed identifier: the base58 encoding of a SHA-256
// digest. Identical bytes always produce an identical ID.
type ID string

// IDFromDigest encodes a digest as an ID.
func IDFromDigest(digest [sha256.Size]byte) ID {
	return ID(base58.Encode(digest[:]))
}

// ParseID validates s as an ID.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.NewInvalidRequestError("empty identifier")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInvalidRequest, "identifier %q is not base58: %v", s, err)
	}
	if len(raw) != sha256.Size {
		return "", errors.NewInvalidRequestError("identifier %q decodes to %d bytes, want %d", s, len(raw), sha256.Size)
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// IsZero reports whether id is unset.
func (id ID) IsZero() bool { return id == "" }

// Short returns the first 8 characters, for display.
func (id ID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}
