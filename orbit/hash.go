package orbit

import (
	"crypto/sha256"
)

// ContentHash computes the ID of raw entity content.
func ContentHash(content []byte) ID {
	return IDFromDigest(sha256.Sum256(content))
}

// RecordID computes the deterministic ID of a record from what defines it:
// kind, content hash, the record it supersedes, and its author. CreatedAt is
// excluded, so writing the same content twice from the same agent at the
// same chain position yields the same record.
//
// Because supersedes is part of the hash, a record can only name a
// predecessor that already existed, so walking predecessors cannot cycle.
func RecordID(kind Kind, contentHash ID, supersedes ID, author string) ID {
	h := sha256.New()

	// Domain separators keep fields from bleeding into each other
	h.Write([]byte("k:"))
	h.Write([]byte(kind))
	h.Write([]byte("\nc:"))
	h.Write([]byte(contentHash))
	h.Write([]byte("\ns:"))
	h.Write([]byte(supersedes))
	h.Write([]byte("\na:"))
	h.Write([]byte(author))

	var out [sha256.Size]byte
	h.Sum(out[:0])
	return IDFromDigest(out)
}

// TombstoneID computes the ID of a delete marker over an original.
func TombstoneID(original ID, author string) ID {
	h := sha256.New()
	h.Write([]byte("t:"))
	h.Write([]byte(original))
	h.Write([]byte("\na:"))
	h.Write([]byte(author))

	var out [sha256.Size]byte
	h.Sum(out[:0])
	return IDFromDigest(out)
}
