// Package sqlite implements the record store and edge index over SQLite.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/orbits/db"
	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/sym"
)

// queryChunk bounds the number of bound variables in one IN clause.
const queryChunk = 500

const (
	recordColumns          = `id, kind, content, content_hash, supersedes, original, author, created_at`
	recordColumnsNoContent = `id, kind, NULL, content_hash, supersedes, original, author, created_at`

	getRecordQuery = `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

	insertRecordQuery = `
		INSERT INTO records (id, kind, content, content_hash, supersedes, original, author, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	successorQuery = `
		SELECT id FROM records
		WHERE supersedes = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	insertTombstoneQuery = `
		INSERT INTO tombstones (id, original, author, created_at)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM tombstones WHERE original = ?)`

	tombstoneIDQuery = `
		SELECT id FROM tombstones
		WHERE original = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`

	isTombstonedQuery = `SELECT EXISTS(SELECT 1 FROM tombstones WHERE original = ?)`

	insertEdgeQuery = `
		INSERT INTO edges (id, from_key, to_id, tag, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	edgesQuery = `
		SELECT id, from_key, to_id, tag, payload, created_at
		FROM edges
		WHERE from_key = ? AND tag = ?
		ORDER BY created_at ASC, id ASC`

	deleteEdgeQuery = `DELETE FROM edges WHERE id = ?`
)

// Store is the SQLite backend.
type Store struct {
	db     *sql.DB
	clock  *store.Clock
	logger *zap.SugaredLogger
}

var _ store.Backend = (*Store)(nil)

// New wraps an already migrated database.
func New(conn *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		db:     conn,
		clock:  store.NewClock(nil),
		logger: logger.Named("sqlite"),
	}
}

// Open opens and migrates the database at path.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	conn, err := db.OpenWithMigrations(path, logger)
	if err != nil {
		return nil, err
	}
	return New(conn, logger), nil
}

// WithClock replaces the timestamp source. Used by tests.
func (s *Store) WithClock(c *store.Clock) *Store {
	s.clock = c
	return s
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*orbit.Record, error) {
	var (
		rec        orbit.Record
		kind       string
		content    []byte
		supersedes sql.NullString
		createdAt  int64
	)
	err := row.Scan(&rec.ID, &kind, &content, &rec.ContentHash, &supersedes, &rec.Original, &rec.Author, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = orbit.Kind(kind)
	if content != nil {
		rec.Content = content
	}
	if supersedes.Valid {
		rec.Supersedes = orbit.ID(supersedes.String)
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return &rec, nil
}

func getRecord(ctx context.Context, q rowQuerier, id orbit.ID) (*orbit.Record, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx, getRecordQuery, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if db.IsDatabaseClosed(err) {
			return nil, errors.Wrapf(db.ErrDatabaseClosed, "get record %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get record %s", id)
	}
	return rec, nil
}

// Put writes a record, or returns the existing one when the same author
// already wrote identical content at the same chain position.
func (s *Store) Put(ctx context.Context, author string, kind orbit.Kind, content []byte, supersedes orbit.ID) (*orbit.Record, error) {
	if err := store.CheckPut(author, kind, content); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin put")
	}
	defer tx.Rollback()

	var prev *orbit.Record
	if !supersedes.IsZero() {
		prev, err = getRecord(ctx, tx, supersedes)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			return nil, errors.NewNotFoundError("superseded record %s", supersedes)
		}
	}

	rec, err := store.NewRecord(author, kind, content, prev, s.clock.Next())
	if err != nil {
		return nil, err
	}

	existing, err := getRecord(ctx, tx, rec.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Debugw("Record already stored", "id", rec.ID, "symbol", sym.DB)
		return existing, nil
	}

	var sup interface{}
	if prev != nil {
		sup = string(prev.ID)
	}
	_, err = tx.ExecContext(ctx, insertRecordQuery,
		string(rec.ID), string(rec.Kind), []byte(rec.Content), string(rec.ContentHash),
		sup, string(rec.Original), rec.Author, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to insert record %s", rec.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrapf(err, "failed to commit record %s", rec.ID)
	}

	s.logger.Debugw("Stored record",
		"id", rec.ID,
		"kind", rec.Kind,
		"original", rec.Original,
		"symbol", sym.DB,
	)
	return rec, nil
}

// Get returns the record at id, or nil when absent.
func (s *Store) Get(ctx context.Context, id orbit.ID) (*orbit.Record, error) {
	return getRecord(ctx, s.db, id)
}

// Successor returns the latest record superseding id.
func (s *Store) Successor(ctx context.Context, id orbit.ID) (orbit.ID, bool, error) {
	var next string
	err := s.db.QueryRowContext(ctx, successorQuery, string(id)).Scan(&next)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get successor of %s", id)
	}
	return orbit.ID(next), true, nil
}

// Query enumerates records matching filter in creation order.
func (s *Store) Query(ctx context.Context, filter store.Filter) ([]*orbit.Record, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []*orbit.Record{}, nil
	}

	columns := recordColumnsNoContent
	if filter.IncludeContent {
		columns = recordColumns
	}

	var (
		where []string
		args  []interface{}
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Author != "" {
		where = append(where, "author = ?")
		args = append(args, filter.Author)
	}

	if filter.IDs == nil {
		return s.queryRecords(ctx, columns, where, args)
	}

	ids := make([]string, 0, len(filter.IDs))
	for id := range filter.IDs {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	var out []*orbit.Record
	for start := 0; start < len(ids); start += queryChunk {
		end := start + queryChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		chunkWhere := append(append([]string(nil), where...),
			"id IN (?"+strings.Repeat(", ?", len(chunk)-1)+")")
		chunkArgs := append([]interface{}(nil), args...)
		for _, id := range chunk {
			chunkArgs = append(chunkArgs, id)
		}
		recs, err := s.queryRecords(ctx, columns, chunkWhere, chunkArgs)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) queryRecords(ctx context.Context, columns string, where []string, args []interface{}) ([]*orbit.Record, error) {
	query := `SELECT ` + columns + ` FROM records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query records")
	}
	defer rows.Close()

	recs := []*orbit.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan record")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate records")
	}
	return recs, nil
}

// Tombstone marks an original record deleted. Tombstoning twice is a no-op
// returning the identifier of the first tombstone, whoever wrote it.
func (s *Store) Tombstone(ctx context.Context, author string, original orbit.ID) (orbit.ID, error) {
	rec, err := getRecord(ctx, s.db, original)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", errors.NewNotFoundError("record %s", original)
	}
	if !rec.IsOriginal() {
		return "", errors.NewInvalidRequestError("record %s is not an original", original)
	}

	id := orbit.TombstoneID(original, author)
	_, err = s.db.ExecContext(ctx, insertTombstoneQuery,
		string(id), string(original), author, s.clock.Next().UnixNano(), string(original))
	if err != nil {
		return "", errors.Wrapf(err, "failed to tombstone %s", original)
	}
	var stored string
	if err := s.db.QueryRowContext(ctx, tombstoneIDQuery, string(original)).Scan(&stored); err != nil {
		return "", errors.Wrapf(err, "failed to read tombstone of %s", original)
	}
	id = orbit.ID(stored)
	s.logger.Debugw("Tombstoned record", "id", original, "tombstone", id, "symbol", sym.Delete)
	return id, nil
}

// IsTombstoned reports whether original carries a tombstone.
func (s *Store) IsTombstoned(ctx context.Context, original orbit.ID) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, isTombstonedQuery, string(original)).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "failed to check tombstone of %s", original)
	}
	return exists, nil
}

// CreateEdge inserts an edge and returns its identifier.
func (s *Store) CreateEdge(ctx context.Context, from string, to orbit.ID, tag store.Tag, payload []byte) (string, error) {
	id := store.NewEdgeID()
	_, err := s.db.ExecContext(ctx, insertEdgeQuery,
		id, from, string(to), string(tag), payload, s.clock.Next().UnixNano())
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s edge from %s", tag, from)
	}
	return id, nil
}

// Edges lists edges from a key with a tag, optionally filtered by payload
// prefix.
func (s *Store) Edges(ctx context.Context, from string, tag store.Tag, payloadPrefix []byte) ([]store.Edge, error) {
	rows, err := s.db.QueryContext(ctx, edgesQuery, from, string(tag))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s edges from %s", tag, from)
	}
	defer rows.Close()

	edges := []store.Edge{}
	for rows.Next() {
		var (
			e         store.Edge
			to, tg    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.From, &to, &tg, &e.Payload, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan edge")
		}
		if payloadPrefix != nil && !bytes.HasPrefix(e.Payload, payloadPrefix) {
			continue
		}
		e.To = orbit.ID(to)
		e.Tag = store.Tag(tg)
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate edges")
	}
	return edges, nil
}

// DeleteEdge removes an edge. A missing edge is ErrNotFound.
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, deleteEdgeQuery, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete edge %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to delete edge %s", id)
	}
	if n == 0 {
		return errors.NewNotFoundError("edge %s", id)
	}
	return nil
}

// Stats counts records, tombstones and edges by tag.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	stats := &store.Stats{Edges: map[store.Tag]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM records GROUP BY kind`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count records")
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan record count")
		}
		stats.Records += n
		switch orbit.Kind(kind) {
		case orbit.KindOrbit:
			stats.Orbits = n
		case orbit.KindSphere:
			stats.Spheres = n
		}
	}
	rows.Close()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tombstones`).Scan(&stats.Tombstones); err != nil {
		return nil, errors.Wrap(err, "failed to count tombstones")
	}

	rows, err = s.db.QueryContext(ctx, `SELECT tag, COUNT(*) FROM edges GROUP BY tag`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count edges")
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan edge count")
		}
		stats.Edges[store.Tag(tag)] = n
	}
	return stats, rows.Err()
}
