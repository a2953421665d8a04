package orbit

import (
	"encoding/json"
	"time"

	"github.com/teranos/orbits/errors"
)

// Kind is the entry type of a record.
type Kind string

const (
	KindOrbit  Kind = "orbit"
	KindSphere Kind = "sphere"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindOrbit || k == KindSphere }

// Record is one immutable, content-addressed snapshot of an entity.
//
// Original is the ID of the first record of the version chain; it equals ID
// for a record that supersedes nothing. Content is nil when a query asked
// for metadata only.
type Record struct {
	ID          ID              `json:"id"`
	Kind        Kind            `json:"kind"`
	Content     json.RawMessage `json:"content,omitempty"`
	ContentHash ID              `json:"content_hash"`
	Supersedes  ID              `json:"supersedes,omitempty"`
	Original    ID              `json:"original"`
	Author      string          `json:"author"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsOriginal reports whether r starts its version chain.
func (r *Record) IsOriginal() bool { return r.Supersedes.IsZero() }

// Orbit decodes the record content as an orbit.
func (r *Record) Orbit() (*Orbit, error) {
	if r.Kind != KindOrbit {
		return nil, errors.NewNotFoundError("record %s is a %s, not an orbit", r.ID, r.Kind)
	}
	if len(r.Content) == 0 {
		return nil, errors.Newf("record %s was fetched without content", r.ID)
	}
	var o Orbit
	if err := json.Unmarshal(r.Content, &o); err != nil {
		return nil, errors.Wrapf(err, "decode orbit record %s", r.ID)
	}
	return &o, nil
}

// Sphere decodes the record content as a sphere.
func (r *Record) Sphere() (*Sphere, error) {
	if r.Kind != KindSphere {
		return nil, errors.NewNotFoundError("record %s is a %s, not a sphere", r.ID, r.Kind)
	}
	if len(r.Content) == 0 {
		return nil, errors.Newf("record %s was fetched without content", r.ID)
	}
	var s Sphere
	if err := json.Unmarshal(r.Content, &s); err != nil {
		return nil, errors.Wrapf(err, "decode sphere record %s", r.ID)
	}
	return &s, nil
}
