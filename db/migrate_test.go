package db

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("creates the schema", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		defer db.Close()

		for _, table := range []string{"schema_migrations", "records", "tombstones", "edges"} {
			var n int
			err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
			require.NoError(t, err)
			assert.Equal(t, 1, n, "table %s should exist", table)
		}
	})

	t.Run("is idempotent across reopen", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		first, err := AppliedVersions(db)
		require.NoError(t, err)
		db.Close()

		db, err = OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()
		second, err := AppliedVersions(db)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, []string{"000", "001", "002"}, second)
	})

	t.Run("wraps migration errors with context", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		_, err = db.Exec("CREATE TABLE records (unrelated TEXT)")
		require.NoError(t, err)
		db.Close()

		db, err = OpenWithMigrations(dbPath, nil)
		require.Error(t, err)
		assert.Nil(t, db)
		detailed := fmt.Sprintf("%+v", err)
		assert.Contains(t, detailed, "001_create_records.sql")
		assert.Contains(t, detailed, "connection.go", "error should carry a stack trace")
	})
}

func TestMigrationFilesOrdered(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "000_create_schema_migrations.sql", files[0])
}

func TestSchemaVersion(t *testing.T) {
	v, err := SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, "002", v)

	conn, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer conn.Close()
	applied, err := AppliedVersions(conn)
	require.NoError(t, err)
	assert.Equal(t, v, applied[len(applied)-1])
}
