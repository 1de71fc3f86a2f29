package canteen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("canteen: not found")
	// ErrPastDate is returned when a reservation targets a civil date
	// before today in the reference timezone.
	ErrPastDate = errors.New("canteen: meal date is in the past")
	// ErrEmptyMembers is returned when a submission names no members.
	ErrEmptyMembers = errors.New("canteen: members must not be empty")
	// ErrDuplicateMembers is returned when a submission names the same
	// person more than once.
	ErrDuplicateMembers = errors.New("canteen: duplicate members in request")
	// ErrMemberNotFound is returned when a member id does not resolve to
	// an active person.
	ErrMemberNotFound = errors.New("canteen: member not found")
	// ErrCrossDepartment is returned when a member belongs to a different
	// department than the requester.
	ErrCrossDepartment = errors.New("canteen: member outside requester department")
	// ErrPersonNotFound is returned when the confirmation target does not
	// resolve to an active person.
	ErrPersonNotFound = errors.New("canteen: person not found")
	// ErrNotReserved is returned when no eligible reservation covers the
	// person for the meal slot. Confirmation never auto-creates one.
	ErrNotReserved = errors.New("canteen: person has no reservation for this meal")
	// ErrAlreadyConfirmed is returned when the person's consumption was
	// already recorded for the reservation.
	ErrAlreadyConfirmed = errors.New("canteen: consumption already confirmed")
	// ErrOutsideMealWindow is returned by the badge path when the server
	// clock falls outside every meal window.
	ErrOutsideMealWindow = errors.New("canteen: outside meal window")
	// ErrNotCancellable is returned when a reservation can no longer be
	// cancelled.
	ErrNotCancellable = errors.New("canteen: reservation is not cancellable")
	// ErrNotCompletable is returned when a reservation is in a terminal
	// state and cannot be completed.
	ErrNotCompletable = errors.New("canteen: reservation is not completable")
	// ErrTokenInvalid is returned for unknown, expired, consumed, or
	// otherwise unusable badge tokens.
	ErrTokenInvalid = errors.New("canteen: badge token invalid")
	// ErrTokenRevoked is returned for revoked badge tokens.
	ErrTokenRevoked = errors.New("canteen: badge token revoked")
)

// MemberAlreadyReservedError reports a submission rejected because some
// requested members already hold a non-cancelled reservation for the same
// meal slot. Every conflicting id is named.
type MemberAlreadyReservedError struct {
	MealDate     civildate.Date
	MealCategory mealwindow.Category
	PersonIDs    []string
}

// Error implements the error interface.
func (e *MemberAlreadyReservedError) Error() string {
	if e == nil {
		return "canteen: members already reserved"
	}
	return fmt.Sprintf("canteen: members already reserved for %s %s: %s",
		e.MealDate, e.MealCategory, strings.Join(e.PersonIDs, ", "))
}

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
