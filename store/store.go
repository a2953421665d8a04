// Package store declares the boundaries the orbit index is built on: an
// append-only, content-addressed record store and a deletable, typed edge
// index. Adapters live in store/sqlite and store/badger.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/orbit"
)

// Filter restricts a record query. Callers scope queries to one author's
// chain of writes; an empty Author or Kind matches any. A nil IDs set
// means no identifier restriction, an empty non-nil set matches nothing.
type Filter struct {
	Kind           orbit.Kind
	Author         string
	IncludeContent bool
	IDs            map[orbit.ID]struct{}
}

// RecordStore is the write-once record store.
//
// Get returns (nil, nil) for an absent identifier. Successor returns the
// record that supersedes id; when concurrent writers branched the chain it
// picks the most recent successor by creation time, ties broken by the
// greatest identifier. This is a last-writer approximation, not a merge.
type RecordStore interface {
	Put(ctx context.Context, author string, kind orbit.Kind, content []byte, supersedes orbit.ID) (*orbit.Record, error)
	Get(ctx context.Context, id orbit.ID) (*orbit.Record, error)
	Successor(ctx context.Context, id orbit.ID) (orbit.ID, bool, error)
	Query(ctx context.Context, filter Filter) ([]*orbit.Record, error)
	Tombstone(ctx context.Context, author string, original orbit.ID) (orbit.ID, error)
	IsTombstoned(ctx context.Context, original orbit.ID) (bool, error)
}

// Tag types an edge.
type Tag string

const (
	TagOrbitUpdates       Tag = "OrbitUpdates"
	TagOrbitsPrefixPath   Tag = "OrbitsPrefixPath"
	TagSphereToOrbit      Tag = "SphereToOrbit"
	TagOrbitParentToChild Tag = "OrbitParentToChild"
)

// Edge is a deletable directed pointer. From may be a derived key (such as
// a prefix path) rather than an identifier.
type Edge struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        orbit.ID  `json:"to"`
	Tag       Tag       `json:"tag"`
	Payload   []byte    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EdgeIndex is the mutable pointer substrate. Edges returns edges in
// creation order (ties by edge ID); an empty result is not an error.
// A nil payloadPrefix matches every payload.
type EdgeIndex interface {
	CreateEdge(ctx context.Context, from string, to orbit.ID, tag Tag, payload []byte) (string, error)
	Edges(ctx context.Context, from string, tag Tag, payloadPrefix []byte) ([]Edge, error)
	DeleteEdge(ctx context.Context, id string) error
}

// Stats counts what a backend holds.
type Stats struct {
	Records    int         `json:"records" yaml:"records"`
	Orbits     int         `json:"orbits" yaml:"orbits"`
	Spheres    int         `json:"spheres" yaml:"spheres"`
	Tombstones int         `json:"tombstones" yaml:"tombstones"`
	Edges      map[Tag]int `json:"edges" yaml:"edges"`
}

// Backend is an adapter implementing both boundaries over one database.
type Backend interface {
	RecordStore
	EdgeIndex
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// CheckPut validates the arguments of RecordStore.Put. Adapters call it
// before touching storage.
func CheckPut(author string, kind orbit.Kind, content []byte) error {
	if author == "" {
		return errors.NewInvalidRequestError("record has no author")
	}
	if !kind.Valid() {
		return errors.NewInvalidRequestError("unknown record kind %q", kind)
	}
	if len(content) == 0 {
		return errors.NewInvalidRequestError("record content is empty")
	}
	return nil
}

// NewRecord assembles the record Put is about to write. prev is the
// superseded record, or nil for the first record of a chain.
func NewRecord(author string, kind orbit.Kind, content []byte, prev *orbit.Record, createdAt time.Time) (*orbit.Record, error) {
	var supersedes orbit.ID
	if prev != nil {
		if prev.Kind != kind {
			return nil, errors.NewInvalidRequestError("a %s record cannot supersede %s record %s", kind, prev.Kind, prev.ID)
		}
		supersedes = prev.ID
	}
	contentHash := orbit.ContentHash(content)
	rec := &orbit.Record{
		ID:          orbit.RecordID(kind, contentHash, supersedes, author),
		Kind:        kind,
		Content:     append([]byte(nil), content...),
		ContentHash: contentHash,
		Supersedes:  supersedes,
		Author:      author,
		CreatedAt:   createdAt,
	}
	rec.Original = rec.ID
	if prev != nil {
		rec.Original = prev.Original
	}
	return rec, nil
}

// NewEdgeID returns a fresh edge identifier.
func NewEdgeID() string {
	return uuid.NewString()
}

// Matches reports whether a record passes f.
func (f Filter) Matches(r *orbit.Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Author != "" && r.Author != f.Author {
		return false
	}
	if f.IDs != nil {
		if _, ok := f.IDs[r.ID]; !ok {
			return false
		}
	}
	return true
}

// Env is the explicit per-call context threaded through every component:
// store handles, the calling agent and a logger.
type Env struct {
	Records RecordStore
	Edges   EdgeIndex
	Agent   string
	Log     *zap.SugaredLogger
}

// NewEnv builds an Env over a backend.
func NewEnv(b Backend, agent string, log *zap.SugaredLogger) *Env {
	return &Env{Records: b, Edges: b, Agent: agent, Log: log}
}

// Validate checks that the Env can serve a call.
func (e *Env) Validate() error {
	if e == nil || e.Records == nil || e.Edges == nil {
		return errors.New("env is missing store handles")
	}
	if e.Agent == "" {
		return errors.NewInvalidRequestError("env has no agent")
	}
	return nil
}

// Logger returns the Env logger, or a no-op logger.
func (e *Env) Logger() *zap.SugaredLogger {
	if e == nil || e.Log == nil {
		return zap.NewNop().Sugar()
	}
	return e.Log
}

// Named returns a child logger for a component.
func (e *Env) Named(component string) *zap.SugaredLogger {
	return e.Logger().Named(component)
}
