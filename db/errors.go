package db

import (
	"strings"

	"github.com/teranos/orbits/errors"
)

// ErrDatabaseClosed is returned when a store is used after Close.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err means the connection is gone, either
// as a wrapped ErrDatabaseClosed or as the raw driver message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
