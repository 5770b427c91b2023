package database

import (
	"context"
	"time"
)

// UserReader provides read-only access to enrolled users
type UserReader interface {
	// ListWithEncodings returns every user that has at least one face encoding,
	// in store iteration order (creation order).
	ListWithEncodings(ctx context.Context) ([]User, error)
	// Get retrieves a user by ID, returns ErrUserNotFound if missing
	Get(ctx context.Context, id string) (*User, error)
	// Count returns the total number of users stored
	Count(ctx context.Context) (int, error)
	// List returns all users in creation order
	List(ctx context.Context) ([]User, error)
}

// UserWriter provides write access to users. Every method touches a single record.
type UserWriter interface {
	UserReader

	// Create stores a new user with one face encoding
	Create(ctx context.Context, encoding []float32, createdAt time.Time) (*User, error)

	// SetMailLink stores (or replaces) the Gmail linkage record
	SetMailLink(ctx context.Context, id string, link MailLink) error

	// UpdateToken replaces the credential bundle of an existing linkage
	UpdateToken(ctx context.Context, id string, token Token) error

	// ClearMailLink removes the linkage record entirely
	ClearMailLink(ctx context.Context, id string) error

	// Delete removes the user
	Delete(ctx context.Context, id string) error
}
