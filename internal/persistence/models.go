package persistence

import (
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
)

// LifecycleStatus tracks the administrative state of a reservation.
type LifecycleStatus string

const (
	LifecyclePending   LifecycleStatus = "pending"
	LifecycleConfirmed LifecycleStatus = "confirmed"
	LifecycleCompleted LifecycleStatus = "completed"
	LifecycleCancelled LifecycleStatus = "cancelled"
)

// ConsumptionStatus tracks whether the reserved meals were actually consumed.
type ConsumptionStatus string

const (
	ConsumptionReserved  ConsumptionStatus = "reserved"
	ConsumptionConsumed  ConsumptionStatus = "consumed"
	ConsumptionCancelled ConsumptionStatus = "cancelled"
)

// ConfirmationChannel identifies which path recorded a consumption.
type ConfirmationChannel string

const (
	ChannelSelf  ConfirmationChannel = "self"
	ChannelAdmin ConfirmationChannel = "admin"
	ChannelBadge ConfirmationChannel = "badge"
)

// IsValid reports whether the channel is one of the known confirmation paths.
func (c ConfirmationChannel) IsValid() bool {
	switch c {
	case ChannelSelf, ChannelAdmin, ChannelBadge:
		return true
	}
	return false
}

// BadgeTokenStatus tracks whether a badge token may still be presented.
type BadgeTokenStatus string

const (
	BadgeTokenActive  BadgeTokenStatus = "active"
	BadgeTokenRevoked BadgeTokenStatus = "revoked"
)

// Department represents an organisational unit that owns reservations.
type Department struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Person represents a staff member in the directory.
type Person struct {
	ID           string
	DepartmentID string
	Name         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reservation represents a department level meal booking for a set of
// members on one civil date and meal category. The reservation level
// consumption status flips to consumed with the first member confirmation
// and gates cancellation; per member state lives on the member rows.
type Reservation struct {
	ID                string
	DepartmentID      string
	RequesterID       string
	MealDate          civildate.Date
	MealCategory      mealwindow.Category
	LifecycleStatus   LifecycleStatus
	ConsumptionStatus ConsumptionStatus
	ConsumedAt        *time.Time
	Remark            string
	Members           []ReservationMember
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReservationMember is one person's slot within a reservation, carrying the
// pair level reserved-to-consumed state the confirmation engine transitions.
type ReservationMember struct {
	PersonID          string
	ConsumptionStatus ConsumptionStatus
	ConsumedAt        *time.Time
}

// MemberIDs returns the person ids of all members in order.
func (r Reservation) MemberIDs() []string {
	ids := make([]string, 0, len(r.Members))
	for _, member := range r.Members {
		ids = append(ids, member.PersonID)
	}
	return ids
}

// Member returns the member row for the given person, if present.
func (r Reservation) Member(personID string) (ReservationMember, bool) {
	for _, member := range r.Members {
		if member.PersonID == personID {
			return member, true
		}
	}
	return ReservationMember{}, false
}

// ConfirmationLogEntry is an append-only record of one consumption
// confirmation. At most one entry exists per (reservation, person).
type ConfirmationLogEntry struct {
	ID            string
	ReservationID string
	PersonID      string
	ActorID       string
	Channel       ConfirmationChannel
	ConfirmedAt   time.Time
	Note          string
}

// BadgeToken represents a physical badge or QR credential. This core only
// validates tokens; issuance lives outside it.
type BadgeToken struct {
	ID         string
	PersonID   string
	SecretHash string
	Status     BadgeTokenStatus
	SingleUse  bool
	ExpiresAt  *time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Menu represents a published menu for one meal slot. Menus are an optional
// collaborator; their absence never blocks a reservation.
type Menu struct {
	ID           string
	MealDate     civildate.Date
	MealCategory mealwindow.Category
	Title        string
	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
