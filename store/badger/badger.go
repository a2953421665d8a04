// Package badger implements the record store and edge index over an
// embedded BadgerDB.
//
// Key layout (all values JSON):
//
//	r/<id>                              record
//	c/<created_at>/<id>                 creation order (empty value)
//	s/<supersedes>/<created_at>/<id>    successor index (empty value)
//	t/<original>                        tombstone
//	e/<from>\x00<tag>\x00<created_at>/<edge id>  edge
//	i/<edge id>                         edge key, for deletes
//
// created_at is a big-endian uint64 of unix nanoseconds, so byte order is
// time order.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/teranos/orbits/am"
	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/sym"
)

var (
	prefixRecord    = []byte("r/")
	prefixCreated   = []byte("c/")
	prefixSuccessor = []byte("s/")
	prefixTombstone = []byte("t/")
	prefixEdge      = []byte("e/")
	prefixEdgeID    = []byte("i/")
)

// Config configures the Badger backend.
type Config struct {
	Dir        string
	InMemory   bool
	SyncWrites bool
}

// Store is the Badger backend.
type Store struct {
	db     *badger.DB
	clock  *store.Clock
	logger *zap.SugaredLogger
}

var _ store.Backend = (*Store)(nil)

// zapLogger routes Badger's internal logging into zap.
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z zapLogger) Errorf(format string, args ...interface{})   { z.l.Errorf(format, args...) }
func (z zapLogger) Warningf(format string, args ...interface{}) { z.l.Warnf(format, args...) }
func (z zapLogger) Infof(format string, args ...interface{})    { z.l.Debugf(format, args...) }
func (z zapLogger) Debugf(format string, args ...interface{})   { z.l.Debugf(format, args...) }

// Open opens (creating if needed) a Badger database.
func Open(cfg Config, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.Named("badger")

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.NewInvalidRequestError("badger directory is required")
		}
		if err := os.MkdirAll(cfg.Dir, am.DefaultDirPermissions); err != nil {
			return nil, errors.Wrapf(err, "create badger directory %s", cfg.Dir)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapLogger{l: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger database %s", cfg.Dir)
	}
	logger.Infow("Badger opened", "dir", cfg.Dir, "in_memory", cfg.InMemory, "symbol", sym.DB)

	return &Store{db: db, clock: store.NewClock(nil), logger: logger}, nil
}

// WithClock replaces the timestamp source. Used by tests.
func (s *Store) WithClock(c *store.Clock) *Store {
	s.clock = c
	return s
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func timeKey(t time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.UnixNano()))
	return b[:]
}

func key(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func recordKey(id orbit.ID) []byte { return key(prefixRecord, []byte(id)) }

func successorPrefix(id orbit.ID) []byte {
	return key(prefixSuccessor, []byte(id), []byte("/"))
}

func edgePrefix(from string, tag store.Tag) []byte {
	return key(prefixEdge, []byte(from), []byte{0}, []byte(tag), []byte{0})
}

// storedRecord keeps Content as raw bytes so non-JSON content survives.
type storedRecord struct {
	ID          orbit.ID   `json:"id"`
	Kind        orbit.Kind `json:"kind"`
	Content     []byte     `json:"content"`
	ContentHash orbit.ID   `json:"content_hash"`
	Supersedes  orbit.ID   `json:"supersedes,omitempty"`
	Original    orbit.ID   `json:"original"`
	Author      string     `json:"author"`
	CreatedAt   int64      `json:"created_at"`
}

func toStored(r *orbit.Record) storedRecord {
	return storedRecord{
		ID: r.ID, Kind: r.Kind, Content: r.Content, ContentHash: r.ContentHash,
		Supersedes: r.Supersedes, Original: r.Original, Author: r.Author,
		CreatedAt: r.CreatedAt.UnixNano(),
	}
}

func (sr storedRecord) record(withContent bool) *orbit.Record {
	rec := &orbit.Record{
		ID: sr.ID, Kind: sr.Kind, ContentHash: sr.ContentHash,
		Supersedes: sr.Supersedes, Original: sr.Original, Author: sr.Author,
		CreatedAt: time.Unix(0, sr.CreatedAt).UTC(),
	}
	if withContent {
		rec.Content = sr.Content
	}
	return rec
}

func getRecord(txn *badger.Txn, id orbit.ID, withContent bool) (*orbit.Record, error) {
	item, err := txn.Get(recordKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get record %s", id)
	}
	var sr storedRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sr)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode record %s", id)
	}
	return sr.record(withContent), nil
}

// Put writes a record, or returns the existing one when the same author
// already wrote identical content at the same chain position.
func (s *Store) Put(ctx context.Context, author string, kind orbit.Kind, content []byte, supersedes orbit.ID) (*orbit.Record, error) {
	if err := store.CheckPut(author, kind, content); err != nil {
		return nil, err
	}

	var out *orbit.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		var prev *orbit.Record
		if !supersedes.IsZero() {
			var err error
			prev, err = getRecord(txn, supersedes, false)
			if err != nil {
				return err
			}
			if prev == nil {
				return errors.NewNotFoundError("superseded record %s", supersedes)
			}
		}

		rec, err := store.NewRecord(author, kind, content, prev, s.clock.Next())
		if err != nil {
			return err
		}

		existing, err := getRecord(txn, rec.ID, true)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		val, err := json.Marshal(toStored(rec))
		if err != nil {
			return errors.Wrapf(err, "failed to encode record %s", rec.ID)
		}
		ts := timeKey(rec.CreatedAt)
		if err := txn.Set(recordKey(rec.ID), val); err != nil {
			return errors.Wrapf(err, "failed to write record %s", rec.ID)
		}
		if err := txn.Set(key(prefixCreated, ts, []byte("/"), []byte(rec.ID)), nil); err != nil {
			return errors.Wrapf(err, "failed to index record %s", rec.ID)
		}
		if prev != nil {
			if err := txn.Set(key(successorPrefix(prev.ID), ts, []byte("/"), []byte(rec.ID)), nil); err != nil {
				return errors.Wrapf(err, "failed to link successor of %s", prev.ID)
			}
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("Stored record", "id", out.ID, "kind", out.Kind, "original", out.Original, "symbol", sym.DB)
	return out, nil
}

// Get returns the record at id, or nil when absent.
func (s *Store) Get(ctx context.Context, id orbit.ID) (*orbit.Record, error) {
	var rec *orbit.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id, true)
		return err
	})
	return rec, err
}

// Successor returns the latest record superseding id. Successor keys sort by
// creation time then id, so the last key under the prefix wins.
func (s *Store) Successor(ctx context.Context, id orbit.ID) (orbit.ID, bool, error) {
	prefix := successorPrefix(id)
	var next orbit.ID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(key(prefix, []byte{0xff}))
		if it.ValidForPrefix(prefix) {
			k := it.Item().Key()
			// <prefix><8-byte time>/<id>
			next = orbit.ID(k[len(prefix)+9:])
		}
		return nil
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get successor of %s", id)
	}
	return next, next != "", nil
}

// Query enumerates records matching filter in creation order.
func (s *Store) Query(ctx context.Context, filter store.Filter) ([]*orbit.Record, error) {
	recs := []*orbit.Record{}
	err := s.db.View(func(txn *badger.Txn) error {
		if filter.IDs != nil {
			for id := range filter.IDs {
				rec, err := getRecord(txn, id, filter.IncludeContent)
				if err != nil {
					return err
				}
				if rec != nil && filter.Matches(rec) {
					recs = append(recs, rec)
				}
			}
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixCreated
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefixCreated); it.ValidForPrefix(prefixCreated); it.Next() {
			k := it.Item().Key()
			id := orbit.ID(k[len(prefixCreated)+9:])
			rec, err := getRecord(txn, id, filter.IncludeContent)
			if err != nil {
				return err
			}
			if rec != nil && filter.Matches(rec) {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query records")
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, nil
}

type tombstone struct {
	ID        orbit.ID `json:"id"`
	Author    string   `json:"author"`
	CreatedAt int64    `json:"created_at"`
}

// Tombstone marks an original record deleted. Tombstoning twice is a no-op
// returning the identifier of the first tombstone, whoever wrote it.
func (s *Store) Tombstone(ctx context.Context, author string, original orbit.ID) (orbit.ID, error) {
	id := orbit.TombstoneID(original, author)
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, original, false)
		if err != nil {
			return err
		}
		if rec == nil {
			return errors.NewNotFoundError("record %s", original)
		}
		if !rec.IsOriginal() {
			return errors.NewInvalidRequestError("record %s is not an original", original)
		}

		k := key(prefixTombstone, []byte(original))
		item, err := txn.Get(k)
		switch err {
		case nil:
			return item.Value(func(val []byte) error {
				var stored tombstone
				if err := json.Unmarshal(val, &stored); err != nil {
					return errors.Wrapf(err, "failed to decode tombstone of %s", original)
				}
				id = stored.ID
				return nil
			})
		case badger.ErrKeyNotFound:
		default:
			return errors.Wrapf(err, "failed to read tombstone of %s", original)
		}
		val, err := json.Marshal(tombstone{ID: id, Author: author, CreatedAt: s.clock.Next().UnixNano()})
		if err != nil {
			return errors.Wrap(err, "failed to encode tombstone")
		}
		return txn.Set(k, val)
	})
	if err != nil {
		return "", err
	}
	s.logger.Debugw("Tombstoned record", "id", original, "tombstone", id, "symbol", sym.Delete)
	return id, nil
}

// IsTombstoned reports whether original carries a tombstone.
func (s *Store) IsTombstoned(ctx context.Context, original orbit.ID) (bool, error) {
	var dead bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(prefixTombstone, []byte(original)))
		switch err {
		case nil:
			dead = true
			return nil
		case badger.ErrKeyNotFound:
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to check tombstone of %s", original)
	}
	return dead, nil
}

// CreateEdge writes an edge and returns its identifier.
func (s *Store) CreateEdge(ctx context.Context, from string, to orbit.ID, tag store.Tag, payload []byte) (string, error) {
	e := store.Edge{
		ID:        store.NewEdgeID(),
		From:      from,
		To:        to,
		Tag:       tag,
		Payload:   payload,
		CreatedAt: s.clock.Next(),
	}
	val, err := json.Marshal(e)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode edge")
	}
	k := key(edgePrefix(from, tag), timeKey(e.CreatedAt), []byte("/"), []byte(e.ID))

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(k, val); err != nil {
			return err
		}
		return txn.Set(key(prefixEdgeID, []byte(e.ID)), k)
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s edge from %s", tag, from)
	}
	return e.ID, nil
}

// Edges lists edges from a key with a tag, optionally filtered by payload
// prefix.
func (s *Store) Edges(ctx context.Context, from string, tag store.Tag, payloadPrefix []byte) ([]store.Edge, error) {
	prefix := edgePrefix(from, tag)
	edges := []store.Edge{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e store.Edge
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			if payloadPrefix != nil && !bytes.HasPrefix(e.Payload, payloadPrefix) {
				continue
			}
			e.CreatedAt = e.CreatedAt.UTC()
			edges = append(edges, e)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s edges from %s", tag, from)
	}
	return edges, nil
}

// DeleteEdge removes an edge. A missing edge is ErrNotFound.
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		idKey := key(prefixEdgeID, []byte(id))
		item, err := txn.Get(idKey)
		if err == badger.ErrKeyNotFound {
			return errors.NewNotFoundError("edge %s", id)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to delete edge %s", id)
		}
		edgeKey, err := item.ValueCopy(nil)
		if err != nil {
			return errors.Wrapf(err, "failed to delete edge %s", id)
		}
		if err := txn.Delete(edgeKey); err != nil {
			return errors.Wrapf(err, "failed to delete edge %s", id)
		}
		return txn.Delete(idKey)
	})
}

// Stats counts records, tombstones and edges by tag.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	stats := &store.Stats{Edges: map[store.Tag]int{}}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.Key()
			switch {
			case bytes.HasPrefix(k, prefixRecord):
				var sr storedRecord
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &sr) }); err != nil {
					return err
				}
				stats.Records++
				switch sr.Kind {
				case orbit.KindOrbit:
					stats.Orbits++
				case orbit.KindSphere:
					stats.Spheres++
				}
			case bytes.HasPrefix(k, prefixTombstone):
				stats.Tombstones++
			case bytes.HasPrefix(k, prefixEdge):
				parts := bytes.SplitN(k[len(prefixEdge):], []byte{0}, 3)
				if len(parts) == 3 {
					stats.Edges[store.Tag(parts[1])]++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to collect badger stats")
	}
	return stats, nil
}
