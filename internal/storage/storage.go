// Package storage provides the relational persistence layer for ChatVerse:
// repository interfaces for users and messages, their PostgreSQL
// implementations, and a manager that owns the connection pool and schema
// migrations.
package storage

import (
	"github.com/codeinmyveins/chatverse/internal/storage/dbx"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = dbx.ErrNotFound

// DBTX is the subset of database/sql used by the repositories. Both *sql.DB
// and *sql.Tx satisfy it.
type DBTX = dbx.DBTX
