package index

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/logger"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/resolve"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/sym"
)

// OnCreate stores o as the first record of a new orbit and indexes it by
// prefix, sphere and (when set) parent.
//
// Creating the same content twice as the same agent returns the record
// written the first time without duplicating its edges. Edges a failed
// earlier attempt did not write are written then.
func OnCreate(ctx context.Context, env *store.Env, o orbit.Orbit) (*orbit.Record, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	log := env.Named("index")

	if err := o.Validate(); err != nil {
		return nil, err
	}
	prefix, err := PrefixKey(o.Name)
	if err != nil {
		return nil, err
	}
	if err := checkParent(ctx, env, o.ParentRef); err != nil {
		return nil, err
	}

	content, err := o.Encode()
	if err != nil {
		return nil, err
	}

	expected := orbit.RecordID(orbit.KindOrbit, orbit.ContentHash(content), "", env.Agent)
	existing, err := env.Records.Get(ctx, expected)
	if err != nil {
		return nil, errors.Wrapf(err, "create orbit %q", o.Name)
	}
	if existing != nil {
		dead, err := env.Records.IsTombstoned(ctx, existing.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "create orbit %q", o.Name)
		}
		if dead {
			return nil, errors.WithHint(
				errors.NewInvalidRequestError("an identical orbit %s was deleted", existing.ID),
				"change any field to create a new orbit",
			)
		}
		log.Debugw("Orbit already exists", logger.FieldID, existing.ID, logger.FieldSymbol, sym.Orbit)
		if err := repairEdges(ctx, env, log, existing.Original); err != nil {
			return nil, errors.Wrapf(err, "create orbit %q", o.Name)
		}
		return existing, nil
	}

	rec, err := env.Records.Put(ctx, env.Agent, orbit.KindOrbit, content, "")
	if err != nil {
		return nil, errors.Wrapf(err, "create orbit %q", o.Name)
	}

	if _, err := env.Edges.CreateEdge(ctx, PrefixSource(prefix), rec.ID, store.TagOrbitsPrefixPath, []byte(o.Name)); err != nil {
		return nil, errors.Wrapf(err, "index orbit %s by prefix", rec.ID)
	}
	if _, err := env.Edges.CreateEdge(ctx, o.SphereRef.String(), rec.ID, store.TagSphereToOrbit, nil); err != nil {
		return nil, errors.Wrapf(err, "index orbit %s under sphere %s", rec.ID, o.SphereRef)
	}
	if !o.ParentRef.IsZero() {
		if _, err := env.Edges.CreateEdge(ctx, o.ParentRef.String(), rec.Original, store.TagOrbitParentToChild, nil); err != nil {
			return nil, errors.Wrapf(err, "link orbit %s to parent %s", rec.ID, o.ParentRef)
		}
	}

	log.Infow("Created orbit",
		logger.FieldID, rec.ID,
		"name", o.Name,
		logger.FieldPrefix, prefix,
		logger.FieldSphereID, o.SphereRef,
		logger.FieldParentID, o.ParentRef,
		logger.FieldAgent, env.Agent,
		logger.FieldSymbol, sym.Create,
	)
	return rec, nil
}

// checkParent requires a set parent to be a live orbit.
func checkParent(ctx context.Context, env *store.Env, parent orbit.ID) error {
	if parent.IsZero() {
		return nil
	}
	rec, err := resolve.Latest(ctx, env, parent)
	if err != nil {
		return errors.Wrapf(err, "parent %s", parent)
	}
	if rec.Kind != orbit.KindOrbit {
		return errors.NewInvalidRequestError("parent %s is a %s, not an orbit", parent, rec.Kind)
	}
	return nil
}

// OnUpdate stores in.UpdatedOrbit as the successor of in.PreviousID and
// moves the indexes to it.
//
// It returns (nil, nil) without writing when the encoded content equals the
// previous record's. Updating a record that is no longer the latest branches
// the chain; the branch is logged and kept.
func OnUpdate(ctx context.Context, env *store.Env, in orbit.UpdateOrbitInput) (*orbit.Record, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	log := env.Named("index")

	if in.OriginalID.IsZero() || in.PreviousID.IsZero() {
		return nil, errors.NewInvalidRequestError("update needs original_id and previous_id")
	}
	updated := in.UpdatedOrbit
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	prefix, err := PrefixKey(updated.Name)
	if err != nil {
		return nil, err
	}
	if updated.ParentRef == in.OriginalID {
		return nil, errors.NewInvalidRequestError("orbit %s cannot be its own parent", in.OriginalID)
	}

	latest, err := resolve.Latest(ctx, env, in.OriginalID)
	if err != nil {
		return nil, errors.Wrapf(err, "update orbit %s", in.OriginalID)
	}
	prev := latest
	if latest.ID != in.PreviousID {
		prev, err = env.Records.Get(ctx, in.PreviousID)
		if err != nil {
			return nil, errors.Wrapf(err, "update orbit %s", in.OriginalID)
		}
		if prev == nil {
			return nil, errors.NewNotFoundError("previous record %s", in.PreviousID)
		}
		if prev.Original != in.OriginalID {
			return nil, errors.NewInvalidRequestError("record %s is not a version of %s", in.PreviousID, in.OriginalID)
		}
	}
	// Edges follow the latest record even when a stale version is updated
	old, err := latest.Orbit()
	if err != nil {
		return nil, err
	}

	content, err := updated.Encode()
	if err != nil {
		return nil, err
	}
	if bytes.Equal(content, prev.Content) {
		log.Debugw("Update is a no-op", logger.FieldOriginalID, in.OriginalID, logger.FieldPreviousID, prev.ID)
		return nil, nil
	}
	if updated.ParentRef != old.ParentRef {
		if err := checkParent(ctx, env, updated.ParentRef); err != nil {
			return nil, err
		}
	}

	// The same update applied twice lands on the record written the first time
	expected := orbit.RecordID(orbit.KindOrbit, orbit.ContentHash(content), prev.ID, env.Agent)
	existing, err := env.Records.Get(ctx, expected)
	if err != nil {
		return nil, errors.Wrapf(err, "update orbit %s", in.OriginalID)
	}
	if existing != nil {
		log.Debugw("Update already applied",
			logger.FieldOriginalID, in.OriginalID,
			logger.FieldPreviousID, prev.ID,
			logger.FieldID, existing.ID,
		)
		if err := repairEdges(ctx, env, log, in.OriginalID); err != nil {
			return nil, errors.Wrapf(err, "update orbit %s", in.OriginalID)
		}
		return existing, nil
	}

	if prev.ID != latest.ID {
		log.Warnw("Updating a superseded version, chain will branch",
			logger.FieldOriginalID, in.OriginalID,
			logger.FieldPreviousID, prev.ID,
			"latest_id", latest.ID,
		)
	}

	rec, err := env.Records.Put(ctx, env.Agent, orbit.KindOrbit, content, prev.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "update orbit %s", in.OriginalID)
	}

	if _, err := env.Edges.CreateEdge(ctx, in.OriginalID.String(), rec.ID, store.TagOrbitUpdates, nil); err != nil {
		return nil, errors.Wrapf(err, "record update of %s", in.OriginalID)
	}
	if _, err := env.Edges.CreateEdge(ctx, PrefixSource(prefix), rec.ID, store.TagOrbitsPrefixPath, []byte(updated.Name)); err != nil {
		return nil, errors.Wrapf(err, "index orbit %s by prefix", rec.ID)
	}
	if err := relocateContainer(ctx, env, log, in.OriginalID, old.SphereRef, updated.SphereRef, rec.ID); err != nil {
		return nil, err
	}
	if updated.ParentRef != old.ParentRef {
		if err := moveParent(ctx, env, log, in.OriginalID, old.ParentRef, updated.ParentRef); err != nil {
			return nil, err
		}
	}

	log.Infow("Updated orbit",
		logger.FieldOriginalID, in.OriginalID,
		logger.FieldPreviousID, prev.ID,
		logger.FieldID, rec.ID,
		logger.FieldSphereID, updated.SphereRef,
		logger.FieldAgent, env.Agent,
		logger.FieldSymbol, sym.Update,
	)
	return rec, nil
}

// repairEdges writes the prefix, container and parent edges the latest
// record of original should have and does not.
func repairEdges(ctx context.Context, env *store.Env, log *zap.SugaredLogger, original orbit.ID) error {
	latest, err := resolve.Latest(ctx, env, original)
	if err != nil {
		return err
	}
	o, err := latest.Orbit()
	if err != nil {
		return err
	}
	prefix, err := PrefixKey(o.Name)
	if err != nil {
		return err
	}

	var repaired []store.Tag
	named, err := chainEdges(ctx, env, PrefixSource(prefix), store.TagOrbitsPrefixPath, original)
	if err != nil {
		return errors.Wrapf(err, "find prefix edge of %s", original)
	}
	hasName := false
	for _, e := range named {
		if string(e.Payload) == o.Name {
			hasName = true
			break
		}
	}
	if !hasName {
		if _, err := env.Edges.CreateEdge(ctx, PrefixSource(prefix), latest.ID, store.TagOrbitsPrefixPath, []byte(o.Name)); err != nil {
			return errors.Wrapf(err, "index orbit %s by prefix", latest.ID)
		}
		repaired = append(repaired, store.TagOrbitsPrefixPath)
	}

	contained, err := chainEdges(ctx, env, o.SphereRef.String(), store.TagSphereToOrbit, original)
	if err != nil {
		return errors.Wrapf(err, "find container edge of %s", original)
	}
	if len(contained) == 0 {
		if _, err := env.Edges.CreateEdge(ctx, o.SphereRef.String(), latest.ID, store.TagSphereToOrbit, nil); err != nil {
			return errors.Wrapf(err, "index orbit %s under sphere %s", latest.ID, o.SphereRef)
		}
		repaired = append(repaired, store.TagSphereToOrbit)
	}

	if !o.ParentRef.IsZero() {
		edges, err := env.Edges.Edges(ctx, o.ParentRef.String(), store.TagOrbitParentToChild, nil)
		if err != nil {
			return errors.Wrapf(err, "find parent edge of %s", original)
		}
		linked := false
		for _, e := range edges {
			if e.To == original {
				linked = true
				break
			}
		}
		if !linked {
			if _, err := env.Edges.CreateEdge(ctx, o.ParentRef.String(), original, store.TagOrbitParentToChild, nil); err != nil {
				return errors.Wrapf(err, "link orbit %s to parent %s", original, o.ParentRef)
			}
			repaired = append(repaired, store.TagOrbitParentToChild)
		}
	}

	if len(repaired) > 0 {
		log.Warnw("Repaired missing index edges",
			logger.FieldOriginalID, original,
			logger.FieldID, latest.ID,
			"tags", repaired,
			logger.FieldSymbol, sym.Edge,
		)
	}
	return nil
}

// chainEdges returns the edges from source with tag whose target belongs to
// the chain of original.
func chainEdges(ctx context.Context, env *store.Env, source string, tag store.Tag, original orbit.ID) ([]store.Edge, error) {
	edges, err := env.Edges.Edges(ctx, source, tag, nil)
	if err != nil {
		return nil, err
	}
	var matches []store.Edge
	for _, e := range edges {
		if e.To == original {
			matches = append(matches, e)
			continue
		}
		rec, err := env.Records.Get(ctx, e.To)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Original == original {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// relocateContainer deletes the container edge of the chain under oldSphere
// and points newSphere at the new record. Any count of stale edges other
// than one is reported as index corruption and the first match is used.
func relocateContainer(ctx context.Context, env *store.Env, log *zap.SugaredLogger, original, oldSphere, newSphere, target orbit.ID) error {
	stale, err := chainEdges(ctx, env, oldSphere.String(), store.TagSphereToOrbit, original)
	if err != nil {
		return errors.Wrapf(err, "find container edge of %s", original)
	}
	if len(stale) != 1 {
		log.Warnw("Unexpected container edge count",
			logger.FieldError, errors.ErrIndexCorrupt,
			logger.FieldOriginalID, original,
			logger.FieldSphereID, oldSphere,
			logger.FieldCount, len(stale),
			logger.FieldEdgeTag, store.TagSphereToOrbit,
		)
	}
	if len(stale) > 0 {
		if err := env.Edges.DeleteEdge(ctx, stale[0].ID); err != nil && !errors.IsNotFoundError(err) {
			return errors.Wrapf(err, "delete container edge %s", stale[0].ID)
		}
	}
	if _, err := env.Edges.CreateEdge(ctx, newSphere.String(), target, store.TagSphereToOrbit, nil); err != nil {
		return errors.Wrapf(err, "index orbit %s under sphere %s", target, newSphere)
	}
	if oldSphere != newSphere {
		log.Debugw("Moved orbit between spheres",
			logger.FieldOriginalID, original,
			"from_sphere", oldSphere,
			"to_sphere", newSphere,
			logger.FieldSymbol, sym.Edge,
		)
	}
	return nil
}

// moveParent replaces the parent-child edge into original.
func moveParent(ctx context.Context, env *store.Env, log *zap.SugaredLogger, original, oldParent, newParent orbit.ID) error {
	if !oldParent.IsZero() {
		if err := unlinkParent(ctx, env, log, original, oldParent); err != nil {
			return err
		}
	}
	if !newParent.IsZero() {
		if _, err := env.Edges.CreateEdge(ctx, newParent.String(), original, store.TagOrbitParentToChild, nil); err != nil {
			return errors.Wrapf(err, "link orbit %s to parent %s", original, newParent)
		}
	}
	return nil
}

func unlinkParent(ctx context.Context, env *store.Env, log *zap.SugaredLogger, original, parent orbit.ID) error {
	edges, err := env.Edges.Edges(ctx, parent.String(), store.TagOrbitParentToChild, nil)
	if err != nil {
		return errors.Wrapf(err, "find parent edge of %s", original)
	}
	removed := 0
	for _, e := range edges {
		if e.To != original {
			continue
		}
		if err := env.Edges.DeleteEdge(ctx, e.ID); err != nil && !errors.IsNotFoundError(err) {
			return errors.Wrapf(err, "delete parent edge %s", e.ID)
		}
		removed++
	}
	if removed != 1 {
		log.Warnw("Unexpected parent edge count",
			logger.FieldError, errors.ErrIndexCorrupt,
			logger.FieldOriginalID, original,
			logger.FieldParentID, parent,
			logger.FieldCount, removed,
			logger.FieldEdgeTag, store.TagOrbitParentToChild,
		)
	}
	return nil
}

// OnDelete tombstones the orbit and removes its container and incoming
// parent edges. Edge cleanup is best effort: failures are logged and the
// tombstone identifier is still returned.
func OnDelete(ctx context.Context, env *store.Env, original orbit.ID) (orbit.ID, error) {
	if err := env.Validate(); err != nil {
		return "", err
	}
	log := env.Named("index")

	latest, err := resolve.Latest(ctx, env, original)
	if err != nil {
		return "", errors.Wrapf(err, "delete orbit %s", original)
	}
	o, err := latest.Orbit()
	if err != nil {
		return "", err
	}

	tomb, err := env.Records.Tombstone(ctx, env.Agent, original)
	if err != nil {
		return "", errors.Wrapf(err, "delete orbit %s", original)
	}

	stale, err := chainEdges(ctx, env, o.SphereRef.String(), store.TagSphereToOrbit, original)
	if err != nil {
		log.Warnw("Could not find container edges of deleted orbit", logger.FieldOriginalID, original, logger.FieldError, err)
	}
	for _, e := range stale {
		if err := env.Edges.DeleteEdge(ctx, e.ID); err != nil && !errors.IsNotFoundError(err) {
			log.Warnw("Could not delete container edge", logger.FieldEdgeID, e.ID, logger.FieldError, err)
		}
	}
	if !o.ParentRef.IsZero() {
		if err := unlinkParent(ctx, env, log, original, o.ParentRef); err != nil {
			log.Warnw("Could not unlink deleted orbit from parent", logger.FieldOriginalID, original, logger.FieldError, err)
		}
	}

	log.Infow("Deleted orbit",
		logger.FieldOriginalID, original,
		"tombstone", tomb,
		logger.FieldAgent, env.Agent,
		logger.FieldSymbol, sym.Delete,
	)
	return tomb, nil
}
