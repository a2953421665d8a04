package index

import (
	"context"
	"strings"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/logger"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/resolve"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/sym"
)

// latestOf resolves the edge target to the latest live record of its
// chain. ok is false when the target is gone, deleted or its chain is
// malformed; those are skipped by readers, not returned.
func latestOf(ctx context.Context, env *store.Env, e store.Edge) (*orbit.Record, bool, error) {
	log := env.Named("index")

	rec, err := env.Records.Get(ctx, e.To)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		log.Warnw("Edge targets a missing record",
			logger.FieldError, errors.ErrIndexCorrupt,
			logger.FieldEdgeID, e.ID,
			logger.FieldEdgeTag, e.Tag,
			logger.FieldID, e.To,
		)
		return nil, false, nil
	}

	latest, err := resolve.Latest(ctx, env, rec.Original)
	switch {
	case err == nil:
		return latest, true, nil
	case errors.IsNotFoundError(err):
		return nil, false, nil
	case errors.Is(err, errors.ErrMalformedChain):
		log.Warnw("Skipping malformed chain", logger.FieldOriginalID, rec.Original, logger.FieldError, err)
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// ListBySphere returns the latest record of every live orbit indexed under
// sphere, in container edge order. Stale edges (the orbit has since moved)
// and duplicates are dropped.
func ListBySphere(ctx context.Context, env *store.Env, sphere orbit.ID) ([]*orbit.Record, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if sphere.IsZero() {
		return nil, errors.NewInvalidRequestError("sphere_ref is required")
	}

	edges, err := env.Edges.Edges(ctx, sphere.String(), store.TagSphereToOrbit, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "list sphere %s", sphere)
	}

	out := []*orbit.Record{}
	seen := map[orbit.ID]struct{}{}
	for _, e := range edges {
		latest, ok, err := latestOf(ctx, env, e)
		if err != nil {
			return nil, errors.Wrapf(err, "list sphere %s", sphere)
		}
		if !ok {
			continue
		}
		if _, dup := seen[latest.Original]; dup {
			continue
		}
		o, err := latest.Orbit()
		if err != nil {
			return nil, err
		}
		if o.SphereRef != sphere {
			continue
		}
		seen[latest.Original] = struct{}{}
		out = append(out, latest)
	}

	env.Named("index").Debugw("Listed sphere",
		logger.FieldSphereID, sphere,
		logger.FieldCount, len(out),
		"edges", len(edges),
		logger.FieldSymbol, sym.Sphere,
	)
	return out, nil
}

// SearchByName returns live orbits whose current name starts with query,
// ignoring case. The query needs at least PrefixLength characters. Renamed
// orbits are found under their new name only.
func SearchByName(ctx context.Context, env *store.Env, query string) ([]*orbit.Record, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	prefix, err := PrefixKey(query)
	if err != nil {
		return nil, err
	}

	edges, err := env.Edges.Edges(ctx, PrefixSource(prefix), store.TagOrbitsPrefixPath, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "search %q", query)
	}

	out := []*orbit.Record{}
	seen := map[orbit.ID]struct{}{}
	for _, e := range edges {
		// The payload is the name at indexing time; a later name that
		// matches has its own edge.
		if !hasNamePrefix(string(e.Payload), query) {
			continue
		}
		latest, ok, err := latestOf(ctx, env, e)
		if err != nil {
			return nil, errors.Wrapf(err, "search %q", query)
		}
		if !ok {
			continue
		}
		if _, dup := seen[latest.Original]; dup {
			continue
		}
		o, err := latest.Orbit()
		if err != nil {
			return nil, err
		}
		if !hasNamePrefix(o.Name, query) {
			continue
		}
		seen[latest.Original] = struct{}{}
		out = append(out, latest)
	}

	env.Named("index").Debugw("Searched orbits",
		logger.FieldPrefix, prefix,
		"query", strings.TrimSpace(query),
		logger.FieldCount, len(out),
		logger.FieldSymbol, sym.Search,
	)
	return out, nil
}
