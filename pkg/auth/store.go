package auth

import (
	"context"
	"time"
)

// UserStore persists identities.
//
// Implementations return ErrUserNotFound for missing identities and
// ErrEmailTaken when a write would duplicate an email.
type UserStore interface {
	// Create stores a new identity. The password hash must already be set.
	Create(ctx context.Context, user *User) error

	// GetByID looks up an identity by id
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail looks up an identity by exact email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update persists every mutable field of user, including the stored hash
	// as given. It never rehashes.
	Update(ctx context.Context, user *User) error

	// TouchLastLogin records a successful login time
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// Search finds identities whose name or email contains the query,
	// optionally restricted to one role
	Search(ctx context.Context, filter SearchFilter) ([]*User, error)
}
