// Package testing holds helpers shared by package tests.
package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/orbits/db"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/store/sqlite"
)

// TestAgent is the author used by test environments.
const TestAgent = "tester@orbits"

// CreateTestDB creates a migrated in-memory SQLite database.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	// Every connection to :memory: is a separate database
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	if err := db.Migrate(conn, nil); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
	})
	return conn
}

// CreateTestStore returns a SQLite backend over CreateTestDB.
func CreateTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	return sqlite.New(CreateTestDB(t), zaptest.NewLogger(t).Sugar())
}

// NewEnv returns an Env over a fresh SQLite backend, acting as TestAgent.
func NewEnv(t *testing.T) *store.Env {
	t.Helper()
	return store.NewEnv(CreateTestStore(t), TestAgent, zaptest.NewLogger(t).Sugar())
}

// NewEnvAs returns an Env sharing backend b, acting as agent.
func NewEnvAs(t *testing.T, b store.Backend, agent string) *store.Env {
	t.Helper()
	return store.NewEnv(b, agent, zaptest.NewLogger(t).Sugar())
}
