package hierarchy

import (
	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
)

// Node is one orbit in a Forest. ID is the orbit's original identifier and
// RecordID the version its name came from. Children hold keys into the
// Forest, never pointers.
type Node struct {
	ID       orbit.ID
	RecordID orbit.ID
	Name     string
	Parent   orbit.ID
	Children []orbit.ID
}

// Forest is an arena of nodes keyed by original identifier. Roots lists
// the nodes without a parent in input order.
type Forest struct {
	Nodes map[orbit.ID]*Node
	Roots []orbit.ID
}

// Node returns the node at id.
func (f *Forest) Node(id orbit.ID) (*Node, bool) {
	n, ok := f.Nodes[id]
	return n, ok
}

// Build assembles records into a forest in two passes, so input order does
// not matter for linking. Children keep input order.
//
// ErrDanglingParent when a record names a parent that is not in records.
// The caller fetches the full closure (see Collect) first.
func Build(records []*orbit.Record) (*Forest, error) {
	return build(records, "")
}

// BuildRooted is Build for a subtree: root is treated as a top-level node
// even when it names a parent outside records.
func BuildRooted(records []*orbit.Record, root orbit.ID) (*Forest, error) {
	return build(records, root)
}

func build(records []*orbit.Record, detached orbit.ID) (*Forest, error) {
	f := &Forest{Nodes: make(map[orbit.ID]*Node, len(records))}
	order := make([]orbit.ID, 0, len(records))

	for _, rec := range records {
		o, err := rec.Orbit()
		if err != nil {
			return nil, err
		}
		key := rec.Original
		if key.IsZero() {
			key = rec.ID
		}
		if _, dup := f.Nodes[key]; dup {
			return nil, errors.NewInvalidRequestError("orbit %s appears twice in the record set", key)
		}
		f.Nodes[key] = &Node{ID: key, RecordID: rec.ID, Name: o.Name, Parent: o.ParentRef}
		order = append(order, key)
	}

	for _, key := range order {
		n := f.Nodes[key]
		if n.Parent.IsZero() || key == detached {
			f.Roots = append(f.Roots, key)
			continue
		}
		parent, ok := f.Nodes[n.Parent]
		if !ok {
			return nil, errors.Wrapf(errors.ErrDanglingParent, "orbit %s names parent %s", key, n.Parent)
		}
		parent.Children = append(parent.Children, key)
	}
	return f, nil
}

// Prune keeps the records whose parent chain reaches root inside the set,
// in input order. Root itself is kept with its parent ignored. Records
// orphaned by an absent ancestor are dropped along with their subtrees.
func Prune(records []*orbit.Record, root orbit.ID) ([]*orbit.Record, error) {
	parents := make(map[orbit.ID]orbit.ID, len(records))
	for _, rec := range records {
		o, err := rec.Orbit()
		if err != nil {
			return nil, err
		}
		parents[rec.Original] = o.ParentRef
	}

	// 1 reaches root, -1 does not, 0 unknown
	state := map[orbit.ID]int{root: 1}
	reaches := func(start orbit.ID) bool {
		var path []orbit.ID
		seen := map[orbit.ID]struct{}{}
		id := start
		result := -1
		for {
			if s, ok := state[id]; ok && s != 0 {
				result = s
				break
			}
			if _, loop := seen[id]; loop {
				break
			}
			seen[id] = struct{}{}
			path = append(path, id)
			parent, ok := parents[id]
			if !ok || parent.IsZero() {
				break
			}
			id = parent
		}
		for _, p := range path {
			state[p] = result
		}
		return result == 1
	}

	out := make([]*orbit.Record, 0, len(records))
	for _, rec := range records {
		if reaches(rec.Original) {
			out = append(out, rec)
		}
	}
	return out, nil
}
