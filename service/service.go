// Package service is the request/response facade of the orbit index. Each
// method is one independent unit of work against the store; the Service
// holds no state besides the Env it passes down.
package service

import (
	"context"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/hierarchy"
	"github.com/teranos/orbits/index"
	"github.com/teranos/orbits/logger"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/resolve"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/sym"
)

// Service serves orbit and sphere requests for one agent.
type Service struct {
	env *store.Env
}

// New returns a Service acting through env.
func New(env *store.Env) (*Service, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &Service{env: env}, nil
}

// As returns a Service over the same stores acting as agent.
func (s *Service) As(agent string) *Service {
	env := *s.env
	env.Agent = agent
	return &Service{env: &env}
}

// Env returns the Env the service acts through.
func (s *Service) Env() *store.Env { return s.env }

// CreateOrbit stores a new orbit and indexes it.
func (s *Service) CreateOrbit(ctx context.Context, in orbit.Orbit) (*orbit.Record, error) {
	return index.OnCreate(ctx, s.env, in)
}

// GetOrbit returns the latest record of an orbit.
func (s *Service) GetOrbit(ctx context.Context, original orbit.ID) (*orbit.Record, error) {
	rec, err := resolve.Latest(ctx, s.env, original)
	if err != nil {
		return nil, err
	}
	if rec.Kind != orbit.KindOrbit {
		return nil, errors.NewNotFoundError("%s is a %s, not an orbit", original, rec.Kind)
	}
	return rec, nil
}

// OrbitHistory returns every version of an orbit, oldest first.
func (s *Service) OrbitHistory(ctx context.Context, original orbit.ID) ([]*orbit.Record, error) {
	if _, err := s.GetOrbit(ctx, original); err != nil {
		return nil, err
	}
	return resolve.History(ctx, s.env, original)
}

// UpdateOrbit supersedes in.PreviousID. The result is nil when the content
// did not change.
func (s *Service) UpdateOrbit(ctx context.Context, in orbit.UpdateOrbitInput) (*orbit.Record, error) {
	return index.OnUpdate(ctx, s.env, in)
}

// DeleteOrbit tombstones an orbit and returns the tombstone identifier.
func (s *Service) DeleteOrbit(ctx context.Context, in orbit.DeleteOrbitInput) (orbit.ID, error) {
	if in.OriginalID.IsZero() {
		return "", errors.NewInvalidRequestError("original_id is required")
	}
	return index.OnDelete(ctx, s.env, in.OriginalID)
}

// ListBySphere returns the live orbits of a sphere.
func (s *Service) ListBySphere(ctx context.Context, in orbit.ListBySphereInput) ([]*orbit.Record, error) {
	return index.ListBySphere(ctx, s.env, in.SphereRef)
}

// SearchOrbits finds orbits by name prefix.
func (s *Service) SearchOrbits(ctx context.Context, in orbit.SearchInput) ([]*orbit.Record, error) {
	return index.SearchByName(ctx, s.env, in.Query)
}

// ListMyOrbits returns the latest record of every live orbit the agent
// created, in creation order.
func (s *Service) ListMyOrbits(ctx context.Context) ([]*orbit.Record, error) {
	return s.listMine(ctx, orbit.KindOrbit)
}

// listMine enumerates the agent's originals of kind and resolves each.
func (s *Service) listMine(ctx context.Context, kind orbit.Kind) ([]*orbit.Record, error) {
	recs, err := s.env.Records.Query(ctx, store.Filter{Kind: kind, Author: s.env.Agent})
	if err != nil {
		return nil, errors.Wrapf(err, "list %ss of %s", kind, s.env.Agent)
	}

	out := []*orbit.Record{}
	for _, rec := range recs {
		if !rec.IsOriginal() {
			continue
		}
		latest, err := resolve.Latest(ctx, s.env, rec.ID)
		if errors.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, latest)
	}
	return out, nil
}

// Hierarchy returns the tree rooted at in.RootID.
//
// Descendants are collected over parent-child edges, fetched from the
// agent's own records, resolved to their latest versions and assembled.
// Descendants the agent cannot see (deleted, or written by another agent)
// are dropped along with their subtrees.
func (s *Service) Hierarchy(ctx context.Context, in orbit.HierarchyInput) (*hierarchy.Tree, error) {
	forest, err := s.forest(ctx, in.RootID)
	if err != nil {
		return nil, err
	}
	return hierarchy.Serialize(forest, in.RootID)
}

// HierarchyJSON returns Hierarchy encoded as {id, name, children}.
func (s *Service) HierarchyJSON(ctx context.Context, in orbit.HierarchyInput) (string, error) {
	tree, err := s.Hierarchy(ctx, in)
	if err != nil {
		return "", err
	}
	return tree.JSON()
}

// HierarchyBounds returns the depth and breadth of the tree at in.RootID.
func (s *Service) HierarchyBounds(ctx context.Context, in orbit.HierarchyInput) (hierarchy.Bounds, error) {
	forest, err := s.forest(ctx, in.RootID)
	if err != nil {
		return hierarchy.Bounds{}, err
	}
	return hierarchy.BoundsOf(forest, in.RootID)
}

func (s *Service) forest(ctx context.Context, root orbit.ID) (*hierarchy.Forest, error) {
	log := s.env.Named("service")
	if root.IsZero() {
		return nil, errors.NewInvalidRequestError("root_id is required")
	}

	rootRec, err := s.GetOrbit(ctx, root)
	if err != nil {
		return nil, err
	}

	ids, err := hierarchy.Collect(ctx, s.env, root)
	if err != nil {
		return nil, err
	}
	fetched, err := s.env.Records.Query(ctx, store.Filter{
		Kind:   orbit.KindOrbit,
		Author: s.env.Agent,
		IDs:    ids,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch hierarchy of %s", root)
	}

	latest := []*orbit.Record{rootRec}
	for _, rec := range fetched {
		if rec.ID == root || !rec.IsOriginal() {
			continue
		}
		l, err := resolve.Latest(ctx, s.env, rec.ID)
		if errors.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		latest = append(latest, l)
	}

	kept, err := hierarchy.Prune(latest, root)
	if err != nil {
		return nil, err
	}
	if dropped := len(ids) - len(kept); dropped > 0 {
		log.Debugw("Hierarchy omits unreachable descendants",
			logger.FieldID, root,
			logger.FieldCount, dropped,
		)
	}

	forest, err := hierarchy.BuildRooted(kept, root)
	if err != nil {
		return nil, err
	}
	log.Debugw("Built hierarchy",
		logger.FieldID, root,
		logger.FieldCount, len(kept),
		logger.FieldSymbol, sym.Tree,
	)
	return forest, nil
}

// CreateSphere stores a new sphere. Creating identical content twice
// returns the first record.
func (s *Service) CreateSphere(ctx context.Context, in orbit.Sphere) (*orbit.Record, error) {
	if err := s.env.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	content, err := in.Encode()
	if err != nil {
		return nil, err
	}
	rec, err := s.env.Records.Put(ctx, s.env.Agent, orbit.KindSphere, content, "")
	if err != nil {
		return nil, errors.Wrapf(err, "create sphere %q", in.Name)
	}
	s.env.Named("service").Infow("Created sphere",
		logger.FieldID, rec.ID,
		"name", in.Name,
		logger.FieldAgent, s.env.Agent,
		logger.FieldSymbol, sym.Sphere,
	)
	return rec, nil
}

// GetSphere returns the latest record of a sphere.
func (s *Service) GetSphere(ctx context.Context, original orbit.ID) (*orbit.Record, error) {
	rec, err := resolve.Latest(ctx, s.env, original)
	if err != nil {
		return nil, err
	}
	if rec.Kind != orbit.KindSphere {
		return nil, errors.NewNotFoundError("%s is a %s, not a sphere", original, rec.Kind)
	}
	return rec, nil
}

// ListMySpheres returns the spheres the agent created.
func (s *Service) ListMySpheres(ctx context.Context) ([]*orbit.Record, error) {
	return s.listMine(ctx, orbit.KindSphere)
}
