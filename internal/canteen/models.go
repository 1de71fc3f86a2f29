package canteen

import (
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

// SubmitParams captures a group reservation request.
type SubmitParams struct {
	RequesterID  string
	MealDate     civildate.Date
	MealCategory mealwindow.Category
	MemberIDs    []string
	Remark       string
}

// SelfConfirmParams identifies a person confirming their own consumption.
type SelfConfirmParams struct {
	ReservationID string
	PersonID      string
	Note          string
}

// AdminConfirmParams identifies a supervisor confirming on a person's
// behalf.
type AdminConfirmParams struct {
	ReservationID string
	PersonID      string
	ActorID       string
	Note          string
}

// BadgeConfirmParams carries a presented badge credential. Either the
// (TokenID, Secret) pair or the SignedToken string is set.
type BadgeConfirmParams struct {
	TokenID     string
	Secret      string
	SignedToken string
	Note        string
}

// ConfirmationResult reports one successful reserved-to-consumed
// transition.
type ConfirmationResult struct {
	ReservationID string
	PersonID      string
	MealDate      civildate.Date
	MealCategory  mealwindow.Category
	Channel       persistence.ConfirmationChannel
	ConsumedAt    time.Time
	LogEntryID    string
}

// DayStatus summarises all reservations on one civil date.
type DayStatus struct {
	Date            civildate.Date
	Reservations    []persistence.Reservation
	MembersReserved int
	MembersConsumed int
}
