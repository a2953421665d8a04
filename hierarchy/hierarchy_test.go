package hierarchy

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/orbits/errors"
	itesting "github.com/teranos/orbits/internal/testing"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
)

var sphere = orbit.ContentHash([]byte("sphere"))

func id(name string) orbit.ID { return orbit.ContentHash([]byte(name)) }

// record builds an original record for name without a store.
func record(t *testing.T, name string, parent orbit.ID) *orbit.Record {
	t.Helper()
	content, err := (&orbit.Orbit{Name: name, SphereRef: sphere, ParentRef: parent}).Encode()
	require.NoError(t, err)
	rid := id(name)
	return &orbit.Record{ID: rid, Original: rid, Kind: orbit.KindOrbit, Content: content}
}

func link(t *testing.T, env *store.Env, from, to orbit.ID) {
	t.Helper()
	_, err := env.Edges.CreateEdge(context.Background(), from.String(), to, store.TagOrbitParentToChild, nil)
	require.NoError(t, err)
}

func TestCollectCycle(t *testing.T) {
	env := itesting.NewEnv(t)
	a, b, c := id("A"), id("B"), id("C")
	link(t, env, a, b)
	link(t, env, b, c)
	link(t, env, c, a)

	got, err := Collect(context.Background(), env, a)
	require.NoError(t, err)
	assert.Equal(t, map[orbit.ID]struct{}{a: {}, b: {}, c: {}}, got)
}

func TestCollectIsIdempotent(t *testing.T) {
	env := itesting.NewEnv(t)
	root := id("root")
	for i := 0; i < 4; i++ {
		child := id(fmt.Sprintf("child-%d", i))
		link(t, env, root, child)
		link(t, env, child, id(fmt.Sprintf("grandchild-%d", i)))
	}
	link(t, env, id("child-0"), id("child-1")) // diamond

	first, err := Collect(context.Background(), env, root)
	require.NoError(t, err)
	second, err := Collect(context.Background(), env, root)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 9)
}

func TestCollectLeaf(t *testing.T) {
	env := itesting.NewEnv(t)
	got, err := Collect(context.Background(), env, id("alone"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCollectDeepChainIsIterative(t *testing.T) {
	env := itesting.NewEnv(t)
	prev := id("n0")
	for i := 1; i < 2000; i++ {
		next := id(fmt.Sprintf("n%d", i))
		link(t, env, prev, next)
		prev = next
	}
	got, err := Collect(context.Background(), env, id("n0"))
	require.NoError(t, err)
	assert.Len(t, got, 2000)
}

func TestBuildRoundTrip(t *testing.T) {
	r := record(t, "Root", "")
	c1 := record(t, "Child one", r.ID)
	c2 := record(t, "Child two", r.ID)

	// children before their parent: two passes make order irrelevant
	forest, err := Build([]*orbit.Record{c1, r, c2})
	require.NoError(t, err)
	assert.Equal(t, []orbit.ID{r.ID}, forest.Roots)

	tree, err := Serialize(forest, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, tree.ID)
	assert.Equal(t, "Root", tree.Name)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, c1.ID, tree.Children[0].ID)
	assert.Equal(t, c2.ID, tree.Children[1].ID)

	doc, err := tree.JSON()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &decoded))
	assert.Equal(t, string(r.ID), decoded["id"])
	assert.Len(t, decoded["children"], 2)
}

func TestBuildDanglingParent(t *testing.T) {
	child := record(t, "Child", id("absent"))
	_, err := Build([]*orbit.Record{record(t, "Root", ""), child})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDanglingParent))
}

func TestBuildRootedIgnoresRootParent(t *testing.T) {
	root := record(t, "Subtree", id("outside"))
	leaf := record(t, "Leaf", root.ID)

	_, err := Build([]*orbit.Record{root, leaf})
	assert.True(t, errors.Is(err, errors.ErrDanglingParent))

	forest, err := BuildRooted([]*orbit.Record{root, leaf}, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []orbit.ID{root.ID}, forest.Roots)
}

func TestBuildRejectsDuplicates(t *testing.T) {
	r := record(t, "Root", "")
	_, err := Build([]*orbit.Record{r, r})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSerializeCycleInArena(t *testing.T) {
	a := record(t, "A", id("B"))
	b := record(t, "B", id("A"))

	forest, err := Build([]*orbit.Record{a, b})
	require.NoError(t, err)
	assert.Empty(t, forest.Roots)

	tree, err := Serialize(forest, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Size())
}

func TestSerializeMissingRoot(t *testing.T) {
	forest, err := Build(nil)
	require.NoError(t, err)
	_, err = Serialize(forest, id("nope"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBounds(t *testing.T) {
	r := record(t, "Root", "")
	a := record(t, "A", r.ID)
	b := record(t, "B", r.ID)
	c := record(t, "C", r.ID)
	a1 := record(t, "A1", a.ID)

	forest, err := Build([]*orbit.Record{r, a, b, c, a1})
	require.NoError(t, err)

	bounds, err := BoundsOf(forest, r.ID)
	require.NoError(t, err)
	assert.Equal(t, Bounds{Depth: 3, Breadth: 3}, bounds)

	leaf, err := BoundsOf(forest, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, Bounds{Depth: 1, Breadth: 1}, leaf)
}

func TestPrune(t *testing.T) {
	root := record(t, "Root", id("outside"))
	kept := record(t, "Kept", root.ID)
	orphan := record(t, "Orphan", id("gone"))
	orphanChild := record(t, "Orphan child", orphan.ID)
	loopA := record(t, "Loop A", id("Loop B"))
	loopB := record(t, "Loop B", id("Loop A"))

	out, err := Prune([]*orbit.Record{orphanChild, root, kept, orphan, loopA, loopB}, root.ID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, root.ID, out[0].ID)
	assert.Equal(t, kept.ID, out[1].ID)
}
