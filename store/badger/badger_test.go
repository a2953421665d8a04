package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *store.Clock) store.Backend {
		return openTestStore(t).WithClock(clock)
	})
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Config{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "orbits.badger")

	s, err := Open(Config{Dir: dir, SyncWrites: true}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	v1, err := s.Put(ctx, "alice", orbit.KindOrbit, []byte(`{"name":"v1"}`), "")
	require.NoError(t, err)
	v2, err := s.Put(ctx, "alice", orbit.KindOrbit, []byte(`{"name":"v2"}`), v1.ID)
	require.NoError(t, err)
	edgeID, err := s.CreateEdge(ctx, "sphere", v2.ID, store.TagSphereToOrbit, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Config{Dir: dir}, nil)
	require.NoError(t, err)
	defer s.Close()

	next, ok, err := s.Successor(ctx, v1.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v2.ID, next)

	edges, err := s.Edges(ctx, "sphere", store.TagSphereToOrbit, nil)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, edgeID, edges[0].ID)
}

func TestNonJSONContent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	raw := []byte{0x00, 0xfe, 'x'}
	rec, err := s.Put(ctx, "alice", orbit.KindOrbit, raw, "")
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, raw, []byte(got.Content))
}

func TestEdgeKeysDoNotBleedAcrossSources(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.CreateEdge(ctx, "all_orbits.abc", orbit.ContentHash([]byte("1")), store.TagOrbitsPrefixPath, []byte("Abc"))
	require.NoError(t, err)
	_, err = s.CreateEdge(ctx, "all_orbits.abcd", orbit.ContentHash([]byte("2")), store.TagOrbitsPrefixPath, []byte("Abcd"))
	require.NoError(t, err)

	edges, err := s.Edges(ctx, "all_orbits.abc", store.TagOrbitsPrefixPath, nil)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}
