package canteen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

// PersonDirectory exposes the person lookup this core consumes. The sqlite
// directory repository is the local default; deployments may substitute a
// remote directory service.
type PersonDirectory interface {
	GetPerson(ctx context.Context, id string) (persistence.Person, error)
}

// MenuCatalog exposes the optional published menu lookup. Its absence never
// blocks a reservation.
type MenuCatalog interface {
	FindPublishedMenu(ctx context.Context, date civildate.Date, category mealwindow.Category) (persistence.Menu, error)
}

// ReservationService is the order submission gate: it validates and persists
// group reservations, rejecting duplicate and conflicting members, and owns
// the guarded cancel and administrative complete transitions.
type ReservationService struct {
	reservations persistence.ReservationRepository
	directory    PersonDirectory
	menus        MenuCatalog
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(reservations persistence.ReservationRepository, directory PersonDirectory, menus MenuCatalog, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(reservations, directory, menus, idGenerator, now, nil)
}

// NewReservationServiceWithLogger is NewReservationService with an explicit
// base logger.
func NewReservationServiceWithLogger(reservations persistence.ReservationRepository, directory PersonDirectory, menus MenuCatalog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: reservations,
		directory:    directory,
		menus:        menus,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// Submit validates the request and persists a new reservation with
// lifecycle pending and consumption reserved. The slot conflict check and
// the insert run as one atomic unit in the repository.
func (s *ReservationService) Submit(ctx context.Context, params SubmitParams) (persistence.Reservation, error) {
	if s == nil || s.reservations == nil {
		return persistence.Reservation{}, fmt.Errorf("reservation repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "reservation", "submit",
		"requester_id", params.RequesterID,
		"meal_date", params.MealDate.String(),
		"meal_category", params.MealCategory.String(),
	)

	if err := s.validateSubmit(params); err != nil {
		logger.WarnContext(ctx, "submission rejected", "error", err, "error_kind", ErrorKind(err))
		return persistence.Reservation{}, err
	}

	requester, err := s.resolveActivePerson(ctx, params.RequesterID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			err = ErrPersonNotFound
		}
		logger.WarnContext(ctx, "submission rejected", "error", err, "error_kind", ErrorKind(err))
		return persistence.Reservation{}, err
	}

	members, err := s.resolveMembers(ctx, requester.DepartmentID, params.MemberIDs)
	if err != nil {
		logger.WarnContext(ctx, "submission rejected", "error", err, "error_kind", ErrorKind(err))
		return persistence.Reservation{}, err
	}

	s.checkMenu(ctx, logger, params.MealDate, params.MealCategory)

	createdAt := s.now()
	reservation := persistence.Reservation{
		ID:                s.idGenerator(),
		DepartmentID:      requester.DepartmentID,
		RequesterID:       requester.ID,
		MealDate:          params.MealDate,
		MealCategory:      params.MealCategory,
		LifecycleStatus:   persistence.LifecyclePending,
		ConsumptionStatus: persistence.ConsumptionReserved,
		Remark:            params.Remark,
		Members:           members,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}

	if err := s.reservations.CreateReservation(ctx, reservation); err != nil {
		var conflict *persistence.MemberConflictError
		if errors.As(err, &conflict) {
			rejection := &MemberAlreadyReservedError{
				MealDate:     params.MealDate,
				MealCategory: params.MealCategory,
				PersonIDs:    conflict.PersonIDs,
			}
			logger.WarnContext(ctx, "submission rejected", "error", rejection, "error_kind", ErrorKind(rejection), "conflicting_ids", conflict.PersonIDs)
			return persistence.Reservation{}, rejection
		}
		logger.ErrorContext(ctx, "submission failed", "error", err, "error_kind", ErrorKind(err))
		return persistence.Reservation{}, err
	}

	logger.InfoContext(ctx, "reservation created", "reservation_id", reservation.ID, "members", len(members))
	return reservation, nil
}

// Cancel moves a reservation to cancelled. It is permitted only while the
// consumption status is still reserved; once any member consumed, or the
// lifecycle is terminal, ErrNotCancellable is returned.
func (s *ReservationService) Cancel(ctx context.Context, actorID, reservationID string) error {
	if s == nil || s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "reservation", "cancel", "reservation_id", reservationID, "actor_id", actorID)

	err := s.reservations.CancelReservation(ctx, reservationID, s.now())
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		logger.WarnContext(ctx, "cancel rejected", "error_kind", ErrorKind(ErrNotCancellable))
		return ErrNotCancellable
	case err != nil:
		logger.ErrorContext(ctx, "cancel failed", "error", err)
		return err
	}

	logger.InfoContext(ctx, "reservation cancelled")
	return nil
}

// Complete administratively closes a reservation. Cancelled reservations
// cannot be completed.
func (s *ReservationService) Complete(ctx context.Context, actorID, reservationID string) error {
	if s == nil || s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "reservation", "complete", "reservation_id", reservationID, "actor_id", actorID)

	err := s.reservations.CompleteReservation(ctx, reservationID, s.now())
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		logger.WarnContext(ctx, "complete rejected", "error_kind", ErrorKind(ErrNotCompletable))
		return ErrNotCompletable
	case err != nil:
		logger.ErrorContext(ctx, "complete failed", "error", err)
		return err
	}

	logger.InfoContext(ctx, "reservation completed")
	return nil
}

// Get returns one reservation by id.
func (s *ReservationService) Get(ctx context.Context, reservationID string) (persistence.Reservation, error) {
	if s == nil || s.reservations == nil {
		return persistence.Reservation{}, fmt.Errorf("reservation repository not configured")
	}
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Reservation{}, ErrNotFound
	}
	return reservation, err
}

// Status returns all non-cancelled reservations on a civil date with a
// consumption summary.
func (s *ReservationService) Status(ctx context.Context, date civildate.Date) (DayStatus, error) {
	if s == nil || s.reservations == nil {
		return DayStatus{}, fmt.Errorf("reservation repository not configured")
	}
	if date.IsZero() {
		vErr := &ValidationError{}
		vErr.add("meal_date", "meal date is required")
		return DayStatus{}, vErr
	}

	reservations, err := s.reservations.ListReservations(ctx, persistence.ReservationFilter{MealDate: &date})
	if err != nil {
		return DayStatus{}, err
	}

	status := DayStatus{Date: date, Reservations: reservations}
	for _, reservation := range reservations {
		for _, member := range reservation.Members {
			switch member.ConsumptionStatus {
			case persistence.ConsumptionConsumed:
				status.MembersConsumed++
			default:
				status.MembersReserved++
			}
		}
	}

	return status, nil
}

func (s *ReservationService) validateSubmit(params SubmitParams) error {
	if params.MealDate.IsZero() {
		vErr := &ValidationError{}
		vErr.add("meal_date", "meal date is required")
		return vErr
	}
	if !params.MealCategory.IsValid() {
		vErr := &ValidationError{}
		vErr.add("meal_category", "meal category must be breakfast, lunch or dinner")
		return vErr
	}
	if params.RequesterID == "" {
		vErr := &ValidationError{}
		vErr.add("requester_id", "requester is required")
		return vErr
	}

	// "Today" is computed once from the injected clock in the reference
	// timezone, never by converting the civil date through an instant.
	today := civildate.Today(s.now())
	if params.MealDate.Before(today) {
		return ErrPastDate
	}

	if len(params.MemberIDs) == 0 {
		return ErrEmptyMembers
	}
	seen := make(map[string]struct{}, len(params.MemberIDs))
	for _, id := range params.MemberIDs {
		if id == "" {
			return ErrEmptyMembers
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMembers, id)
		}
		seen[id] = struct{}{}
	}

	return nil
}

func (s *ReservationService) resolveActivePerson(ctx context.Context, id string) (persistence.Person, error) {
	if s.directory == nil {
		return persistence.Person{}, fmt.Errorf("person directory not configured")
	}
	person, err := s.directory.GetPerson(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Person{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	if err != nil {
		return persistence.Person{}, err
	}
	if !person.Active {
		return persistence.Person{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return person, nil
}

func (s *ReservationService) resolveMembers(ctx context.Context, departmentID string, memberIDs []string) ([]persistence.ReservationMember, error) {
	ids := make([]string, len(memberIDs))
	copy(ids, memberIDs)
	sort.Strings(ids)

	members := make([]persistence.ReservationMember, 0, len(ids))
	for _, id := range ids {
		person, err := s.resolveActivePerson(ctx, id)
		if err != nil {
			return nil, err
		}
		if person.DepartmentID != departmentID {
			return nil, fmt.Errorf("%w: %s", ErrCrossDepartment, id)
		}
		members = append(members, persistence.ReservationMember{
			PersonID:          person.ID,
			ConsumptionStatus: persistence.ConsumptionReserved,
		})
	}

	return members, nil
}

// checkMenu consults the optional menu catalog. A missing menu or a catalog
// failure is logged and ignored; it must never block submission.
func (s *ReservationService) checkMenu(ctx context.Context, logger *slog.Logger, date civildate.Date, category mealwindow.Category) {
	if s.menus == nil {
		return
	}
	if _, err := s.menus.FindPublishedMenu(ctx, date, category); err != nil {
		logger.DebugContext(ctx, "no published menu for slot", "error", err)
	}
}
