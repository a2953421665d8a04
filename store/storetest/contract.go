// Package storetest checks that a store.Backend honours the record store
// and edge index contract. Adapter tests run it against their backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
)

// Factory builds an empty backend whose timestamps come from clock.
type Factory func(t *testing.T, clock *store.Clock) store.Backend

// Run runs the contract suite.
func Run(t *testing.T, newBackend Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"put and get", testPutGet},
		{"put is idempotent", testPutIdempotent},
		{"put superseding", testPutSuperseding},
		{"put rejects missing predecessor", testPutMissingPredecessor},
		{"put rejects kind change", testPutKindChange},
		{"put rejects bad input", testPutBadInput},
		{"successor picks latest branch", testSuccessorBranch},
		{"query filters", testQueryFilters},
		{"query without content", testQueryWithoutContent},
		{"tombstone", testTombstone},
		{"edges", testEdges},
		{"edge payload prefix", testEdgePayloadPrefix},
		{"delete edge", testDeleteEdge},
		{"stats", testStats},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frozen := time.Unix(1700000000, 0)
			b := newBackend(t, store.NewClock(func() time.Time { return frozen }))
			tc.fn(t, b)
		})
	}
}

const (
	alice = "alice@orbits"
	bob   = "bob@orbits"
)

func testPutGet(t *testing.T, b store.Backend) {
	ctx := context.Background()

	rec, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"Run"}`), "")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, rec.Original)
	assert.True(t, rec.IsOriginal())
	assert.Equal(t, orbit.ContentHash([]byte(`{"name":"Run"}`)), rec.ContentHash)

	got, err := b.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Kind, got.Kind)
	assert.JSONEq(t, `{"name":"Run"}`, string(got.Content))
	assert.Equal(t, alice, got.Author)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	missing, err := b.Get(ctx, orbit.ContentHash([]byte("nothing")))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testPutIdempotent(t *testing.T, b store.Backend) {
	ctx := context.Background()

	first, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"Run"}`), "")
	require.NoError(t, err)
	again, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"Run"}`), "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, first.CreatedAt.Equal(again.CreatedAt), "second put must return the stored record")

	recs, err := b.Query(ctx, store.Filter{Kind: orbit.KindOrbit, Author: alice})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	other, err := b.Put(ctx, bob, orbit.KindOrbit, []byte(`{"name":"Run"}`), "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func testPutSuperseding(t *testing.T, b store.Backend) {
	ctx := context.Background()

	v1, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"v1"}`), "")
	require.NoError(t, err)
	v2, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"v2"}`), v1.ID)
	require.NoError(t, err)
	v3, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"v3"}`), v2.ID)
	require.NoError(t, err)

	assert.Equal(t, v1.ID, v2.Supersedes)
	assert.Equal(t, v1.ID, v2.Original)
	assert.Equal(t, v1.ID, v3.Original)

	next, ok, err := b.Successor(ctx, v1.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v2.ID, next)

	_, ok, err = b.Successor(ctx, v3.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPutMissingPredecessor(t *testing.T, b store.Backend) {
	_, err := b.Put(context.Background(), alice, orbit.KindOrbit, []byte(`{"name":"x"}`), orbit.ContentHash([]byte("ghost")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func testPutKindChange(t *testing.T, b store.Backend) {
	ctx := context.Background()
	s, err := b.Put(ctx, alice, orbit.KindSphere, []byte(`{"name":"Health"}`), "")
	require.NoError(t, err)

	_, err = b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"x"}`), s.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func testPutBadInput(t *testing.T, b store.Backend) {
	ctx := context.Background()
	for name, put := range map[string]func() error{
		"no author": func() error { _, err := b.Put(ctx, "", orbit.KindOrbit, []byte(`{}`), ""); return err },
		"bad kind":  func() error { _, err := b.Put(ctx, alice, "comet", []byte(`{}`), ""); return err },
		"empty":     func() error { _, err := b.Put(ctx, alice, orbit.KindOrbit, nil, ""); return err },
	} {
		err := put()
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "%s: got %v", name, err)
	}
}

func testSuccessorBranch(t *testing.T, b store.Backend) {
	ctx := context.Background()

	root, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"root"}`), "")
	require.NoError(t, err)
	older, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"a"}`), root.ID)
	require.NoError(t, err)
	newer, err := b.Put(ctx, bob, orbit.KindOrbit, []byte(`{"name":"b"}`), root.ID)
	require.NoError(t, err)
	require.True(t, newer.CreatedAt.After(older.CreatedAt))

	next, ok, err := b.Successor(ctx, root.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newer.ID, next, "most recent successor wins")
}

func testQueryFilters(t *testing.T, b store.Backend) {
	ctx := context.Background()

	o1, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"one"}`), "")
	require.NoError(t, err)
	o2, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"two"}`), "")
	require.NoError(t, err)
	_, err = b.Put(ctx, alice, orbit.KindSphere, []byte(`{"name":"sphere"}`), "")
	require.NoError(t, err)
	_, err = b.Put(ctx, bob, orbit.KindOrbit, []byte(`{"name":"bobs"}`), "")
	require.NoError(t, err)

	recs, err := b.Query(ctx, store.Filter{Kind: orbit.KindOrbit, Author: alice, IncludeContent: true})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, o1.ID, recs[0].ID, "creation order")
	assert.Equal(t, o2.ID, recs[1].ID)

	recs, err = b.Query(ctx, store.Filter{Kind: orbit.KindOrbit, Author: alice,
		IDs: map[orbit.ID]struct{}{o2.ID: {}, orbit.ContentHash([]byte("absent")): {}}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, o2.ID, recs[0].ID)

	recs, err = b.Query(ctx, store.Filter{Kind: orbit.KindOrbit, IDs: map[orbit.ID]struct{}{}})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func testQueryWithoutContent(t *testing.T, b store.Backend) {
	ctx := context.Background()
	_, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"one"}`), "")
	require.NoError(t, err)

	recs, err := b.Query(ctx, store.Filter{Kind: orbit.KindOrbit, Author: alice})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Content)
	assert.False(t, recs[0].ContentHash.IsZero())
}

func testTombstone(t *testing.T, b store.Backend) {
	ctx := context.Background()

	v1, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"v1"}`), "")
	require.NoError(t, err)
	v2, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"v2"}`), v1.ID)
	require.NoError(t, err)

	dead, err := b.IsTombstoned(ctx, v1.ID)
	require.NoError(t, err)
	assert.False(t, dead)

	_, err = b.Tombstone(ctx, alice, v2.ID)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "only originals are tombstoned")

	_, err = b.Tombstone(ctx, alice, orbit.ContentHash([]byte("ghost")))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	tid, err := b.Tombstone(ctx, alice, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, orbit.TombstoneID(v1.ID, alice), tid)

	again, err := b.Tombstone(ctx, alice, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, tid, again)

	byBob, err := b.Tombstone(ctx, bob, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, tid, byBob, "the first tombstone is kept")

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tombstones)

	dead, err = b.IsTombstoned(ctx, v1.ID)
	require.NoError(t, err)
	assert.True(t, dead)

	got, err := b.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.NotNil(t, got, "records are never removed")
}

func testEdges(t *testing.T, b store.Backend) {
	ctx := context.Background()
	a := orbit.ContentHash([]byte("a"))
	c := orbit.ContentHash([]byte("c"))

	none, err := b.Edges(ctx, "sphere", store.TagSphereToOrbit, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	id1, err := b.CreateEdge(ctx, "sphere", a, store.TagSphereToOrbit, nil)
	require.NoError(t, err)
	id2, err := b.CreateEdge(ctx, "sphere", c, store.TagSphereToOrbit, []byte("p"))
	require.NoError(t, err)
	_, err = b.CreateEdge(ctx, "sphere", c, store.TagOrbitUpdates, nil)
	require.NoError(t, err)
	_, err = b.CreateEdge(ctx, "other", c, store.TagSphereToOrbit, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	edges, err := b.Edges(ctx, "sphere", store.TagSphereToOrbit, nil)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, id1, edges[0].ID, "creation order")
	assert.Equal(t, a, edges[0].To)
	assert.Equal(t, "sphere", edges[0].From)
	assert.Equal(t, store.TagSphereToOrbit, edges[0].Tag)
	assert.Equal(t, id2, edges[1].ID)
	assert.Equal(t, []byte("p"), edges[1].Payload)
	assert.True(t, edges[1].CreatedAt.After(edges[0].CreatedAt))
}

func testEdgePayloadPrefix(t *testing.T, b store.Backend) {
	ctx := context.Background()
	key := "all_orbits.med"
	_, err := b.CreateEdge(ctx, key, orbit.ContentHash([]byte("1")), store.TagOrbitsPrefixPath, []byte("Meditate"))
	require.NoError(t, err)
	_, err = b.CreateEdge(ctx, key, orbit.ContentHash([]byte("2")), store.TagOrbitsPrefixPath, []byte("Medicine"))
	require.NoError(t, err)

	edges, err := b.Edges(ctx, key, store.TagOrbitsPrefixPath, []byte("Medit"))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, []byte("Meditate"), edges[0].Payload)

	edges, err = b.Edges(ctx, key, store.TagOrbitsPrefixPath, []byte{})
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func testDeleteEdge(t *testing.T, b store.Backend) {
	ctx := context.Background()
	id, err := b.CreateEdge(ctx, "s", orbit.ContentHash([]byte("a")), store.TagSphereToOrbit, nil)
	require.NoError(t, err)

	require.NoError(t, b.DeleteEdge(ctx, id))
	edges, err := b.Edges(ctx, "s", store.TagSphereToOrbit, nil)
	require.NoError(t, err)
	assert.Empty(t, edges)

	err = b.DeleteEdge(ctx, id)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func testStats(t *testing.T, b store.Backend) {
	ctx := context.Background()
	o, err := b.Put(ctx, alice, orbit.KindOrbit, []byte(`{"name":"one"}`), "")
	require.NoError(t, err)
	_, err = b.Put(ctx, alice, orbit.KindSphere, []byte(`{"name":"s"}`), "")
	require.NoError(t, err)
	_, err = b.CreateEdge(ctx, "s", o.ID, store.TagSphereToOrbit, nil)
	require.NoError(t, err)
	_, err = b.Tombstone(ctx, alice, o.ID)
	require.NoError(t, err)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 1, stats.Orbits)
	assert.Equal(t, 1, stats.Spheres)
	assert.Equal(t, 1, stats.Tombstones)
	assert.Equal(t, 1, stats.Edges[store.TagSphereToOrbit])
}
