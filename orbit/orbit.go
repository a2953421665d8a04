package orbit

import (
	"encoding/json"
	"strings"

	"github.com/teranos/orbits/errors"
)

// Frequency is how often an orbit recurs.
type Frequency string

const (
	OneShot            Frequency = "ONE_SHOT"
	DailyOrMore1d      Frequency = "DAILY_OR_MORE_1d"
	DailyOrMore2d      Frequency = "DAILY_OR_MORE_2d"
	DailyOrMore3d      Frequency = "DAILY_OR_MORE_3d"
	LessThanDailyWeek  Frequency = "LESS_THAN_DAILY_1w"
	LessThanDailyMonth Frequency = "LESS_THAN_DAILY_1m"
	LessThanDailyQtr   Frequency = "LESS_THAN_DAILY_1q"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case OneShot, DailyOrMore1d, DailyOrMore2d, DailyOrMore3d,
		LessThanDailyWeek, LessThanDailyMonth, LessThanDailyQtr:
		return true
	}
	return false
}

// Scale places an orbit in the astro/sub/atom hierarchy.
type Scale string

const (
	Astro Scale = "Astro"
	Sub   Scale = "Sub"
	Atom  Scale = "Atom"
)

// Valid reports whether s is a known scale.
func (s Scale) Valid() bool {
	return s == Astro || s == Sub || s == Atom
}

// TimeFrame bounds an orbit in unix seconds. EndTime is open when nil.
type TimeFrame struct {
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time,omitempty"`
}

// OrbitMetadata holds the descriptive fields of an orbit.
type OrbitMetadata struct {
	Description string    `json:"description,omitempty"`
	TimeFrame   TimeFrame `json:"timeframe"`
}

// Orbit is the content of one version of an orbit entity. ParentRef is the
// original ID of the logical parent, never a specific version of it.
type Orbit struct {
	Name      string         `json:"name"`
	ParentRef ID             `json:"parent_ref,omitempty"`
	SphereRef ID             `json:"sphere_ref"`
	Frequency Frequency      `json:"frequency,omitempty"`
	Scale     Scale          `json:"scale,omitempty"`
	Metadata  *OrbitMetadata `json:"metadata,omitempty"`
}

// Validate checks the fields that do not depend on the store.
func (o *Orbit) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return errors.Wrap(errors.ErrInvalidName, "orbit name is empty")
	}
	if o.SphereRef.IsZero() {
		return errors.NewInvalidRequestError("orbit %q has no sphere_ref", o.Name)
	}
	if o.Frequency != "" && !o.Frequency.Valid() {
		return errors.NewInvalidRequestError("unknown frequency %q", o.Frequency)
	}
	if o.Scale != "" && !o.Scale.Valid() {
		return errors.NewInvalidRequestError("unknown scale %q", o.Scale)
	}
	if o.Metadata != nil && o.Metadata.TimeFrame.EndTime != nil &&
		*o.Metadata.TimeFrame.EndTime < o.Metadata.TimeFrame.StartTime {
		return errors.NewInvalidRequestError("orbit %q ends before it starts", o.Name)
	}
	if !o.ParentRef.IsZero() && o.ParentRef == o.SphereRef {
		return errors.NewInvalidRequestError("orbit %q names its sphere as parent", o.Name)
	}
	return nil
}

// Encode returns the canonical stored bytes of o.
func (o *Orbit) Encode() ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, errors.Wrapf(err, "encode orbit %q", o.Name)
	}
	return data, nil
}

// SphereMetadata holds the descriptive fields of a sphere.
type SphereMetadata struct {
	Description string `json:"description,omitempty"`
	Hashtag     string `json:"hashtag,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Sphere is the content of a container that orbits are grouped under.
type Sphere struct {
	Name     string          `json:"name"`
	Metadata *SphereMetadata `json:"metadata,omitempty"`
}

// Validate checks the sphere fields.
func (s *Sphere) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.Wrap(errors.ErrInvalidName, "sphere name is empty")
	}
	return nil
}

// Encode returns the canonical stored bytes of s.
func (s *Sphere) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "encode sphere %q", s.Name)
	}
	return data, nil
}
