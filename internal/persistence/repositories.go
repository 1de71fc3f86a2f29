package persistence

import (
	"context"
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
)

// ReservationFilter narrows reservation queries.
type ReservationFilter struct {
	MealDate         *civildate.Date
	MealCategory     mealwindow.Category
	DepartmentID     string
	IncludeCancelled bool
}

// ReservationRepository stores reservations and their member rows.
type ReservationRepository interface {
	// CreateReservation checks the meal slot for member overlap with
	// existing non-cancelled reservations and inserts the new reservation
	// as one atomic unit. Overlap is reported as *MemberConflictError.
	CreateReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	// CancelReservation moves a reservation to cancelled. It succeeds only
	// while consumption is still reserved and the lifecycle is not
	// terminal; otherwise ErrConstraintViolation is returned.
	CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error
	// CompleteReservation administratively closes a non-cancelled
	// reservation.
	CompleteReservation(ctx context.Context, id string, completedAt time.Time) error
}

// ConfirmMemberParams carries everything the atomic confirmation procedure
// needs. Exactly one of ReservationID or the (MealDate, MealCategory) pair
// locates the reservation: self/admin callers name the reservation, the
// badge path names the slot.
type ConfirmMemberParams struct {
	ReservationID string
	PersonID      string
	MealDate      civildate.Date
	MealCategory  mealwindow.Category

	EntryID     string
	ActorID     string
	Channel     ConfirmationChannel
	ConfirmedAt time.Time
	Note        string

	// ConsumeTokenID, when set, stamps the named single-use badge token
	// inside the same transaction as the confirmation.
	ConsumeTokenID string
}

// ConfirmationLogFilter narrows audit trail queries.
type ConfirmationLogFilter struct {
	ReservationID   string
	PersonID        string
	Channel         ConfirmationChannel
	ConfirmedAfter  *time.Time
	ConfirmedBefore *time.Time
	Limit           int
}

// ConfirmationRepository executes the atomic reserved-to-consumed transition
// and owns the append-only confirmation log.
type ConfirmationRepository interface {
	// ConfirmMember runs the whole transition in one transaction: locate
	// the reserved member, conditionally flip consumption to consumed,
	// append the log entry, and stamp a single-use token when requested.
	// No matching reserved member yields ErrNotFound; a member already
	// consumed (or a duplicate log entry) yields ErrDuplicate. Nothing is
	// partially applied.
	ConfirmMember(ctx context.Context, params ConfirmMemberParams) (ConfirmationLogEntry, error)
	// AppendEntry inserts a log entry outside the confirmation
	// transaction. Duplicate (reservation, person) pairs are rejected
	// with ErrDuplicate. Entries are never updated or deleted.
	AppendEntry(ctx context.Context, entry ConfirmationLogEntry) error
	// ListEntries returns matching entries ordered by confirmation time
	// descending, then id, re-executed against current state on each call.
	ListEntries(ctx context.Context, filter ConfirmationLogFilter) ([]ConfirmationLogEntry, error)
}

// BadgeTokenRepository stores badge credentials for validation.
type BadgeTokenRepository interface {
	CreateBadgeToken(ctx context.Context, token BadgeToken) error
	GetBadgeToken(ctx context.Context, id string) (BadgeToken, error)
	RevokeBadgeToken(ctx context.Context, id string, revokedAt time.Time) error
}

// DirectoryRepository exposes the person and department directory this core
// consumes. A local sqlite implementation keeps the service self contained;
// deployments may substitute a remote directory.
type DirectoryRepository interface {
	CreateDepartment(ctx context.Context, department Department) error
	GetDepartment(ctx context.Context, id string) (Department, error)
	CreatePerson(ctx context.Context, person Person) error
	GetPerson(ctx context.Context, id string) (Person, error)
	ListPersonsByDepartment(ctx context.Context, departmentID string) ([]Person, error)
}

// MenuRepository stores published menus. Lookup misses are expected and
// reported as ErrNotFound.
type MenuRepository interface {
	CreateMenu(ctx context.Context, menu Menu) error
	FindPublishedMenu(ctx context.Context, date civildate.Date, category mealwindow.Category) (Menu, error)
}
