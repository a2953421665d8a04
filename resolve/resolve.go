// Package resolve finds the current record of an entity by walking its
// version chain through the store's successor pointers.
//
// The walk is the only resolution policy. Update edges exist as an audit
// trail and are never read here. When concurrent writers branch a chain the
// store's Successor picks the most recent branch; this approximates the last
// writer and does not merge.
package resolve

import (
	"context"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/logger"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/sym"
)

// Latest returns the terminal record of the chain starting at originalID.
//
// ErrNotFound when no record exists at originalID or the entity has been
// tombstoned. ErrMalformedChain when a successor pointer names a missing
// record, a record of another chain, or a record already visited.
func Latest(ctx context.Context, env *store.Env, originalID orbit.ID) (*orbit.Record, error) {
	chain, err := walk(ctx, env, originalID, false)
	if err != nil {
		return nil, err
	}
	return chain[len(chain)-1], nil
}

// History returns every record of the chain, oldest first.
func History(ctx context.Context, env *store.Env, originalID orbit.ID) ([]*orbit.Record, error) {
	return walk(ctx, env, originalID, true)
}

func walk(ctx context.Context, env *store.Env, originalID orbit.ID, keepAll bool) ([]*orbit.Record, error) {
	log := env.Named("resolve")

	root, err := env.Records.Get(ctx, originalID)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", originalID)
	}
	if root == nil {
		return nil, errors.NewNotFoundError("no record at %s", originalID)
	}
	if !root.IsOriginal() || root.Original != root.ID {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("%s is not an original identifier", originalID),
			"pass the identifier returned by create, not one returned by update",
		)
	}

	dead, err := env.Records.IsTombstoned(ctx, originalID)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", originalID)
	}
	if dead {
		return nil, errors.NewNotFoundError("%s was deleted", originalID)
	}

	chain := []*orbit.Record{root}
	visited := map[orbit.ID]struct{}{root.ID: {}}
	current := root
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, ok, err := env.Records.Successor(ctx, current.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "successor of %s", current.ID)
		}
		if !ok {
			break
		}
		if _, seen := visited[next]; seen {
			return nil, errors.Wrapf(errors.ErrMalformedChain, "chain %s revisits %s", originalID, next)
		}
		visited[next] = struct{}{}

		rec, err := env.Records.Get(ctx, next)
		if err != nil {
			return nil, errors.Wrapf(err, "successor %s", next)
		}
		if rec == nil {
			return nil, errors.Wrapf(errors.ErrMalformedChain, "successor %s of %s is missing", next, current.ID)
		}
		if rec.Original != originalID || rec.Supersedes != current.ID {
			return nil, errors.Wrapf(errors.ErrMalformedChain,
				"successor %s of %s belongs to chain %s", next, current.ID, rec.Original)
		}

		if keepAll {
			chain = append(chain, rec)
		} else {
			chain[0] = rec
		}
		current = rec
	}

	log.Debugw("Resolved chain",
		logger.FieldOriginalID, originalID,
		logger.FieldID, current.ID,
		logger.FieldDepth, len(visited),
		logger.FieldSymbol, sym.Resolve,
	)
	return chain, nil
}
