package store

import (
	"context"

	"github.com/teranos/orbits/orbit"
)

type nopRecords struct{}

func (nopRecords) Put(context.Context, string, orbit.Kind, []byte, orbit.ID) (*orbit.Record, error) {
	return nil, nil
}
func (nopRecords) Get(context.Context, orbit.ID) (*orbit.Record, error) { return nil, nil }
func (nopRecords) Successor(context.Context, orbit.ID) (orbit.ID, bool, error) {
	return "", false, nil
}
func (nopRecords) Query(context.Context, Filter) ([]*orbit.Record, error) { return nil, nil }
func (nopRecords) Tombstone(context.Context, string, orbit.ID) (orbit.ID, error) {
	return "", nil
}
func (nopRecords) IsTombstoned(context.Context, orbit.ID) (bool, error) { return false, nil }

type nopEdges struct{}

func (nopEdges) CreateEdge(context.Context, string, orbit.ID, Tag, []byte) (string, error) {
	return "", nil
}
func (nopEdges) Edges(context.Context, string, Tag, []byte) ([]Edge, error) { return nil, nil }
func (nopEdges) DeleteEdge(context.Context, string) error                  { return nil }
