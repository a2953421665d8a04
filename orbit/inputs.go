package orbit

// UpdateOrbitInput supersedes PreviousID (the caller's view of the current
// record) with UpdatedOrbit. OriginalID is the stable handle of the orbit.
type UpdateOrbitInput struct {
	OriginalID   ID    `json:"original_id"`
	PreviousID   ID    `json:"previous_id"`
	UpdatedOrbit Orbit `json:"updated_orbit"`
}

// DeleteOrbitInput tombstones an orbit by its original ID.
type DeleteOrbitInput struct {
	OriginalID ID `json:"original_id"`
}

// ListBySphereInput lists the orbits currently indexed under a sphere.
type ListBySphereInput struct {
	SphereRef ID `json:"sphere_ref"`
}

// HierarchyInput asks for the tree rooted at an orbit's original ID.
type HierarchyInput struct {
	RootID ID `json:"root_id"`
}

// SearchInput looks orbits up by name prefix.
type SearchInput struct {
	Query string `json:"query"`
}
