// Package hierarchy enumerates the descendants of an orbit over parent-child
// edges and rebuilds the tree they form from a flat set of records.
//
// Parent-child edges are index data and may contain cycles. Every traversal
// here is iterative and tracks visited nodes.
package hierarchy

import (
	"context"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/logger"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/sym"
)

// Collect returns root and every identifier reachable from it over
// parent-child edges. A node without edges has no children. Errors come
// only from the edge index.
func Collect(ctx context.Context, env *store.Env, root orbit.ID) (map[orbit.ID]struct{}, error) {
	visited := map[orbit.ID]struct{}{root: {}}
	stack := []orbit.ID{root}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		edges, err := env.Edges.Edges(ctx, current.String(), store.TagOrbitParentToChild, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "children of %s", current)
		}
		for _, e := range edges {
			if _, seen := visited[e.To]; seen {
				continue
			}
			visited[e.To] = struct{}{}
			stack = append(stack, e.To)
		}
	}

	env.Named("hierarchy").Debugw("Collected descendants",
		logger.FieldID, root,
		logger.FieldCount, len(visited),
		logger.FieldSymbol, sym.Tree,
	)
	return visited, nil
}
