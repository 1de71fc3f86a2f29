package persistence

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when an insert collides with an existing
	// record, including the confirmation log uniqueness backstop.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when a record violates a schema
	// level check.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a record references a row
	// that does not exist.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)

// MemberConflictError reports the person ids that already hold a
// non-cancelled reservation for the requested meal slot.
type MemberConflictError struct {
	PersonIDs []string
}

// Error implements the error interface.
func (e *MemberConflictError) Error() string {
	if e == nil || len(e.PersonIDs) == 0 {
		return "persistence: members already reserved"
	}
	return fmt.Sprintf("persistence: members already reserved: %s", strings.Join(e.PersonIDs, ", "))
}
