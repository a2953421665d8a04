package hierarchy

import (
	"encoding/json"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
)

// Tree is the serialized form of a subtree.
type Tree struct {
	ID       orbit.ID `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Children []*Tree  `json:"children" yaml:"children"`
}

// Serialize renders the subtree at root breadth-first. A node reachable
// twice (a cycle in the arena) appears only at its first position.
func Serialize(f *Forest, root orbit.ID) (*Tree, error) {
	n, ok := f.Node(root)
	if !ok {
		return nil, errors.NewNotFoundError("orbit %s is not in the hierarchy", root)
	}

	out := &Tree{ID: n.ID, Name: n.Name, Children: []*Tree{}}
	type item struct {
		node *Node
		tree *Tree
	}
	queue := []item{{n, out}}
	visited := map[orbit.ID]struct{}{root: {}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, childID := range cur.node.Children {
			if _, seen := visited[childID]; seen {
				continue
			}
			visited[childID] = struct{}{}
			child := f.Nodes[childID]
			t := &Tree{ID: child.ID, Name: child.Name, Children: []*Tree{}}
			cur.tree.Children = append(cur.tree.Children, t)
			queue = append(queue, item{child, t})
		}
	}
	return out, nil
}

// JSON encodes t as the hierarchy response document.
func (t *Tree) JSON() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "encode hierarchy")
	}
	return string(data), nil
}

// Size counts the nodes of t.
func (t *Tree) Size() int {
	n := 0
	stack := []*Tree{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, cur.Children...)
	}
	return n
}

// Bounds describes the shape of a subtree: Depth is the number of levels
// (1 for a lone root) and Breadth the widest level.
type Bounds struct {
	Depth   int `json:"depth" yaml:"depth"`
	Breadth int `json:"breadth" yaml:"breadth"`
}

// BoundsOf measures the subtree at root level by level.
func BoundsOf(f *Forest, root orbit.ID) (Bounds, error) {
	if _, ok := f.Node(root); !ok {
		return Bounds{}, errors.NewNotFoundError("orbit %s is not in the hierarchy", root)
	}

	var b Bounds
	visited := map[orbit.ID]struct{}{root: {}}
	level := []orbit.ID{root}
	for len(level) > 0 {
		b.Depth++
		if len(level) > b.Breadth {
			b.Breadth = len(level)
		}
		var next []orbit.ID
		for _, id := range level {
			for _, child := range f.Nodes[id].Children {
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				next = append(next, child)
			}
		}
		level = next
	}
	return b, nil
}
