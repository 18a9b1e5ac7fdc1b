package users

import "context"

// Storage is the persistence port for user records.
//
// UpsertUser must merge: it creates the record when absent and otherwise only
// overwrites the fields present in the update. Implementations must be safe
// for concurrent use.
type Storage interface {
	// UpsertUser merge-writes the update into the record keyed by update.Email.
	UpsertUser(ctx context.Context, update Update) error

	// GetUser returns the record stored for email, or ErrUserNotFound.
	GetUser(ctx context.Context, email string) (*Record, error)
}
