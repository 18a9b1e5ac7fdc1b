package users

import "errors"

var (
	// ErrUserNotFound is returned when no record exists for an email
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidEmail is returned for an empty record key
	ErrInvalidEmail = errors.New("invalid user email")

	// ErrStorageUnavailable is returned when the backing store cannot be reached
	ErrStorageUnavailable = errors.New("storage unavailable")
)
