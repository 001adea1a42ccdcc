// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/harryandriyan/bilbul/internal/models"
)

// Store defines the persistence operations Bilbul needs: user accounts,
// completed split records, and the anonymous usage flag derived from them.
// The abstraction allows swapping storage backends without touching the
// session or auth layers.
type Store interface {
	// CreateUser persists a new user account.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves a user by email.
	// Returns (nil, nil) when no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user by ID.
	// Returns (nil, nil) when no such user exists.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateSplitRecord persists one completed split.
	CreateSplitRecord(ctx context.Context, record *models.SplitRecord) error

	// HasAnonymousSplit reports whether the client has already completed a
	// split while signed out. Backs the one-free-split gate.
	HasAnonymousSplit(ctx context.Context, clientID string) (bool, error)

	// ListSplitsByUser returns a user's split history, newest first.
	ListSplitsByUser(ctx context.Context, userID string) ([]*models.SplitRecord, error)

	// Close releases any resources held by the store.
	Close() error
}
