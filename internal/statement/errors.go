package statement

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks lookups for entities that do not exist or belong
	// to another owner.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks operations rejected because of current state:
	// invalid status transitions and lost import races.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateUpload marks an upload whose file hash matches a
	// statement already on record for the same card. It is a kind of
	// ErrConflict.
	ErrDuplicateUpload = fmt.Errorf("statement file already uploaded: %w", ErrConflict)

	// ErrInvalidStatement marks malformed upload or import input.
	ErrInvalidStatement = errors.New("invalid statement")
)
