// Package users stores and resolves user records. The realtime core only
// ever reads: account creation and profile updates belong to the HTTP CRUD
// layer.
package users

import "context"

// User is the read-only projection of a user row consumed by the realtime
// subsystem.
type User struct {
	ID       int64
	Username string
}

// Repository resolves user identities.
type Repository interface {
	// GetByID returns the user with the given id, or storage.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*User, error)
}
