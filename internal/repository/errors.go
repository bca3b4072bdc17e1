// Package repository holds the SQL for every table. Methods ending in Tx
// run inside a transaction owned by the caller; the caller commits or
// rolls back. Lookups of a missing row return sql.ErrNoRows unchanged so
// services can map it to their own not-found error.
package repository

import (
	"database/sql"
	"errors"
)

// IsNoRows reports whether err means the requested row does not exist.
func IsNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
