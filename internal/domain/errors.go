package domain

import "errors"

// Domain errors surfaced by validation and repositories.

var (
	// ErrEmptyID indicates an entity was passed without an id.
	ErrEmptyID = errors.New("entity id is empty")

	// ErrNotFound indicates the entity is not present in the local cache.
	ErrNotFound = errors.New("entity not found")

	// ErrNameRequired indicates an empty name.
	ErrNameRequired = errors.New("name is required")

	// ErrNameTooLong indicates a name over the maximum length.
	ErrNameTooLong = errors.New("name exceeds maximum length")

	// ErrInvalidAlertKind indicates an unrecognized alert kind value.
	ErrInvalidAlertKind = errors.New("invalid alert kind")
)
