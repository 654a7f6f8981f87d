package errors

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")

	ErrEmailExists = errors.New("email already registered")

	// ErrResetNotFound covers unknown tokens and tokens consumed by a
	// concurrent reset.
	ErrResetNotFound = errors.New("password reset not found")
)
