package service

import (
	"time"

	"github.com/teranos/orbits/orbit"
)

// OrbitView flattens an orbit record for display and export.
type OrbitView struct {
	ID        orbit.ID        `json:"id" yaml:"id"`
	RecordID  orbit.ID        `json:"record_id" yaml:"record_id"`
	Name      string          `json:"name" yaml:"name"`
	SphereRef orbit.ID        `json:"sphere_ref" yaml:"sphere_ref"`
	ParentRef orbit.ID        `json:"parent_ref,omitempty" yaml:"parent_ref,omitempty"`
	Frequency orbit.Frequency `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Scale     orbit.Scale     `json:"scale,omitempty" yaml:"scale,omitempty"`
	Author    string          `json:"author" yaml:"author"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// ViewOrbit decodes rec into an OrbitView.
func ViewOrbit(rec *orbit.Record) (*OrbitView, error) {
	o, err := rec.Orbit()
	if err != nil {
		return nil, err
	}
	return &OrbitView{
		ID:        rec.Original,
		RecordID:  rec.ID,
		Name:      o.Name,
		SphereRef: o.SphereRef,
		ParentRef: o.ParentRef,
		Frequency: o.Frequency,
		Scale:     o.Scale,
		Author:    rec.Author,
		UpdatedAt: rec.CreatedAt,
	}, nil
}

// ViewOrbits decodes every record.
func ViewOrbits(recs []*orbit.Record) ([]*OrbitView, error) {
	out := make([]*OrbitView, 0, len(recs))
	for _, rec := range recs {
		v, err := ViewOrbit(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SphereView flattens a sphere record for display and export.
type SphereView struct {
	ID          orbit.ID `json:"id" yaml:"id"`
	RecordID    orbit.ID `json:"record_id" yaml:"record_id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Hashtag     string   `json:"hashtag,omitempty" yaml:"hashtag,omitempty"`
}

// ViewSphere decodes rec into a SphereView.
func ViewSphere(rec *orbit.Record) (*SphereView, error) {
	sp, err := rec.Sphere()
	if err != nil {
		return nil, err
	}
	v := &SphereView{ID: rec.Original, RecordID: rec.ID, Name: sp.Name}
	if sp.Metadata != nil {
		v.Description = sp.Metadata.Description
		v.Hashtag = sp.Metadata.Hashtag
	}
	return v, nil
}
