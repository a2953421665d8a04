package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/orbits/db"
	"github.com/teranos/orbits/errors"
	itesting "github.com/teranos/orbits/internal/testing"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/store/sqlite"
	"github.com/teranos/orbits/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *store.Clock) store.Backend {
		return itesting.CreateTestStore(t).WithClock(clock)
	})
}

func TestOpenPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orbits.db")

	s, err := sqlite.Open(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	rec, err := s.Put(ctx, "alice", orbit.KindOrbit, []byte(`{"name":"Run"}`), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Original, got.Original)
}

func TestQueryChunksLargeIDSets(t *testing.T) {
	ctx := context.Background()
	s := itesting.CreateTestStore(t)

	ids := map[orbit.ID]struct{}{}
	var want []orbit.ID
	for i := 0; i < 3; i++ {
		rec, err := s.Put(ctx, "alice", orbit.KindOrbit, []byte(fmt.Sprintf(`{"name":"orbit %d"}`, i)), "")
		require.NoError(t, err)
		ids[rec.ID] = struct{}{}
		want = append(want, rec.ID)
	}
	for i := 0; i < 1200; i++ {
		ids[orbit.ContentHash([]byte(fmt.Sprintf("absent-%d", i)))] = struct{}{}
	}

	recs, err := s.Query(ctx, store.Filter{Kind: orbit.KindOrbit, Author: "alice", IDs: ids})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, want[i], rec.ID)
	}
}

func TestClosedDatabase(t *testing.T) {
	s := itesting.CreateTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), orbit.ContentHash([]byte("x")))
	require.Error(t, err)
	assert.True(t, db.IsDatabaseClosed(err))
}

func newMockStore(t *testing.T) (*sqlite.Store, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return sqlite.New(conn, zaptest.NewLogger(t).Sugar()), mock
}

func TestGetWrapsDriverErrors(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM records WHERE id = \?`).
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.Get(context.Background(), orbit.ContentHash([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get record")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRollsBackOnInsertFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM records WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "content", "content_hash", "supersedes", "original", "author", "created_at",
		}))
	mock.ExpectExec(`INSERT INTO records`).
		WithArgs(
			sqlmock.AnyArg(), // id
			"orbit",
			sqlmock.AnyArg(), // content
			sqlmock.AnyArg(), // content_hash
			nil,              // supersedes
			sqlmock.AnyArg(), // original
			"alice",
			sqlmock.AnyArg(), // created_at
		).
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, err := s.Put(context.Background(), "alice", orbit.KindOrbit, []byte(`{"name":"Run"}`), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEdgeMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM edges WHERE id = \?`).
		WithArgs("edge-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteEdge(context.Background(), "edge-1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEdgesWrapsDriverErrors(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM edges`).
		WithArgs("all_orbits.run", string(store.TagOrbitsPrefixPath)).
		WillReturnError(errors.New("database is locked"))

	_, err := s.Edges(context.Background(), "all_orbits.run", store.TagOrbitsPrefixPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list OrbitsPrefixPath edges")
	assert.NoError(t, mock.ExpectationsWereMet())
}
