package errors

import "errors"

var (
	ErrNotFound = errors.New("document not found")

	// ErrInvalidName covers empty names, non-PDF extensions and any name that
	// would resolve outside the owner's folder.
	ErrInvalidName = errors.New("invalid document name")

	ErrInvalidOwner = errors.New("invalid document owner")
)
