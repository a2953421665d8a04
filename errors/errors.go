// Package errors provides error handling for orbits.
//
// This package re-exports github.com/cockroachdb/errors, providing stack
// traces, wrapping, hints and details, and declares the sentinel errors of
// the orbit index. Wrap a sentinel to add context while keeping it
// matchable with Is:
//
//	return errors.Wrapf(errors.ErrNotFound, "orbit %s", id)
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors of the orbit index. Use these with Is().
var (
	// ErrNotFound indicates the requested identifier is absent from the store
	// (or has been tombstoned).
	ErrNotFound = New("not found")

	// ErrMalformedChain indicates store metadata for a link in a version chain
	// is not record-shaped: a dangling successor, a successor from another
	// chain, or a revisited record.
	ErrMalformedChain = New("malformed version chain")

	// ErrInvalidName indicates a name too short to derive a prefix key from.
	ErrInvalidName = New("invalid name")

	// ErrDanglingParent indicates a hierarchy build was given a record whose
	// parent is not part of the record set.
	ErrDanglingParent = New("dangling parent")

	// ErrIndexCorrupt indicates unexpected secondary-edge cardinality.
	// It is logged as a warning, never returned from index operations.
	ErrIndexCorrupt = New("index corrupt")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest or ErrInvalidName
func IsInvalidRequestError(err error) bool {
	return err != nil && IsAny(err, ErrInvalidRequest, ErrInvalidName)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidRequest, format, args...)
}
