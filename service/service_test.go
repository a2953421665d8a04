package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/orbits/errors"
	itesting "github.com/teranos/orbits/internal/testing"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(itesting.NewEnv(t))
	require.NoError(t, err)
	return svc
}

func createSphere(t *testing.T, svc *Service, name string) orbit.ID {
	t.Helper()
	rec, err := svc.CreateSphere(context.Background(), orbit.Sphere{Name: name})
	require.NoError(t, err)
	return rec.ID
}

func createOrbit(t *testing.T, svc *Service, name string, sphere, parent orbit.ID) *orbit.Record {
	t.Helper()
	rec, err := svc.CreateOrbit(context.Background(), orbit.Orbit{Name: name, SphereRef: sphere, ParentRef: parent})
	require.NoError(t, err)
	return rec
}

func TestNewRequiresValidEnv(t *testing.T) {
	_, err := New(&store.Env{})
	assert.Error(t, err)
}

func TestOrbitLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sphere := createSphere(t, svc, "Health")

	rec := createOrbit(t, svc, "Meditate", sphere, "")

	got, err := svc.GetOrbit(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID, "fresh orbit resolves to itself")

	v2, err := svc.UpdateOrbit(ctx, orbit.UpdateOrbitInput{
		OriginalID: rec.ID, PreviousID: rec.ID,
		UpdatedOrbit: orbit.Orbit{Name: "Meditate daily", SphereRef: sphere, Frequency: orbit.DailyOrMore1d},
	})
	require.NoError(t, err)
	v3, err := svc.UpdateOrbit(ctx, orbit.UpdateOrbitInput{
		OriginalID: rec.ID, PreviousID: v2.ID,
		UpdatedOrbit: orbit.Orbit{Name: "Meditate twice daily", SphereRef: sphere, Frequency: orbit.DailyOrMore2d},
	})
	require.NoError(t, err)

	got, err = svc.GetOrbit(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, v3.ID, got.ID)

	history, err := svc.OrbitHistory(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []orbit.ID{rec.ID, v2.ID, v3.ID}, []orbit.ID{history[0].ID, history[1].ID, history[2].ID})

	unchanged, err := svc.UpdateOrbit(ctx, orbit.UpdateOrbitInput{
		OriginalID: rec.ID, PreviousID: v3.ID,
		UpdatedOrbit: orbit.Orbit{Name: "Meditate twice daily", SphereRef: sphere, Frequency: orbit.DailyOrMore2d},
	})
	require.NoError(t, err)
	assert.Nil(t, unchanged)

	tomb, err := svc.DeleteOrbit(ctx, orbit.DeleteOrbitInput{OriginalID: rec.ID})
	require.NoError(t, err)
	assert.False(t, tomb.IsZero())

	_, err = svc.GetOrbit(ctx, rec.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mine, err := svc.ListMyOrbits(ctx)
	require.NoError(t, err)
	assert.Empty(t, mine)

	listed, err := svc.ListBySphere(ctx, orbit.ListBySphereInput{SphereRef: sphere})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestDeleteOrbitRequiresID(t *testing.T) {
	svc := newService(t)
	_, err := svc.DeleteOrbit(context.Background(), orbit.DeleteOrbitInput{})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestListMyOrbitsReturnsLatestPerOrbit(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sphere := createSphere(t, svc, "Work")

	a := createOrbit(t, svc, "Alpha", sphere, "")
	b := createOrbit(t, svc, "Bravo", sphere, "")
	a2, err := svc.UpdateOrbit(ctx, orbit.UpdateOrbitInput{OriginalID: a.ID, PreviousID: a.ID,
		UpdatedOrbit: orbit.Orbit{Name: "Alpha prime", SphereRef: sphere}})
	require.NoError(t, err)

	other := svc.As("someone-else")
	createOrbit(t, other, "Charlie", sphere, "")

	mine, err := svc.ListMyOrbits(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, a2.ID, mine[0].ID)
	assert.Equal(t, b.ID, mine[1].ID)

	views, err := ViewOrbits(mine)
	require.NoError(t, err)
	assert.Equal(t, "Alpha prime", views[0].Name)
	assert.Equal(t, a.ID, views[0].ID)
	assert.Equal(t, a2.ID, views[0].RecordID)
}

func TestHierarchy(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sphere := createSphere(t, svc, "Health")

	root := createOrbit(t, svc, "Fitness", sphere, "")
	run := createOrbit(t, svc, "Running", sphere, root.ID)
	lift := createOrbit(t, svc, "Lifting", sphere, root.ID)
	createOrbit(t, svc, "Intervals", sphere, run.ID)

	// Rename the parent: children stay attached through the original ID
	_, err := svc.UpdateOrbit(ctx, orbit.UpdateOrbitInput{OriginalID: root.ID, PreviousID: root.ID,
		UpdatedOrbit: orbit.Orbit{Name: "Fitness plan", SphereRef: sphere}})
	require.NoError(t, err)

	tree, err := svc.Hierarchy(ctx, orbit.HierarchyInput{RootID: root.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, tree.ID)
	assert.Equal(t, "Fitness plan", tree.Name)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, run.ID, tree.Children[0].ID)
	assert.Equal(t, lift.ID, tree.Children[1].ID)
	require.Len(t, tree.Children[0].Children, 1)
	assert.Equal(t, "Intervals", tree.Children[0].Children[0].Name)

	doc, err := svc.HierarchyJSON(ctx, orbit.HierarchyInput{RootID: root.ID})
	require.NoError(t, err)
	var decoded struct {
		ID       string `json:"id"`
		Children []struct {
			Name string `json:"name"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &decoded))
	assert.Equal(t, root.ID.String(), decoded.ID)
	assert.Len(t, decoded.Children, 2)

	bounds, err := svc.HierarchyBounds(ctx, orbit.HierarchyInput{RootID: root.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, bounds.Depth)
	assert.Equal(t, 2, bounds.Breadth)

	sub, err := svc.Hierarchy(ctx, orbit.HierarchyInput{RootID: run.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Size(), "a subtree root keeps its own parent out of the build")
}

func TestHierarchyDropsDeletedSubtrees(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sphere := createSphere(t, svc, "Health")

	root := createOrbit(t, svc, "Fitness", sphere, "")
	run := createOrbit(t, svc, "Running", sphere, root.ID)
	createOrbit(t, svc, "Intervals", sphere, run.ID)

	_, err := svc.DeleteOrbit(ctx, orbit.DeleteOrbitInput{OriginalID: run.ID})
	require.NoError(t, err)

	tree, err := svc.Hierarchy(ctx, orbit.HierarchyInput{RootID: root.ID})
	require.NoError(t, err)
	assert.Empty(t, tree.Children)
}

func TestHierarchyOfMissingRoot(t *testing.T) {
	svc := newService(t)
	_, err := svc.Hierarchy(context.Background(), orbit.HierarchyInput{RootID: orbit.ContentHash([]byte("none"))})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = svc.Hierarchy(context.Background(), orbit.HierarchyInput{})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSearchOrbits(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sphere := createSphere(t, svc, "Mind")
	createOrbit(t, svc, "Reading", sphere, "")
	createOrbit(t, svc, "Writing", sphere, "")

	found, err := svc.SearchOrbits(ctx, orbit.SearchInput{Query: "read"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = svc.SearchOrbits(ctx, orbit.SearchInput{Query: "re"})
	assert.True(t, errors.Is(err, errors.ErrInvalidName))
}

func TestSpheres(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	rec, err := svc.CreateSphere(ctx, orbit.Sphere{Name: "Health", Metadata: &orbit.SphereMetadata{Hashtag: "#health"}})
	require.NoError(t, err)
	again, err := svc.CreateSphere(ctx, orbit.Sphere{Name: "Health", Metadata: &orbit.SphereMetadata{Hashtag: "#health"}})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)

	got, err := svc.GetSphere(ctx, rec.ID)
	require.NoError(t, err)
	view, err := ViewSphere(got)
	require.NoError(t, err)
	assert.Equal(t, "#health", view.Hashtag)

	o := createOrbit(t, svc, "Walking", rec.ID, "")
	_, err = svc.GetSphere(ctx, o.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = svc.GetOrbit(ctx, rec.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	spheres, err := svc.ListMySpheres(ctx)
	require.NoError(t, err)
	assert.Len(t, spheres, 1)

	_, err = svc.CreateSphere(ctx, orbit.Sphere{})
	assert.True(t, errors.Is(err, errors.ErrInvalidName))
}
