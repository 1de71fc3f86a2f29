package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using
// SQLite.
type ReservationRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{pool: pool, mapper: NewErrorMapper()}
}

type reservationRow struct {
	ID                string         `db:"id"`
	DepartmentID      string         `db:"department_id"`
	RequesterID       string         `db:"requester_id"`
	MealDate          string         `db:"meal_date"`
	MealCategory      string         `db:"meal_category"`
	LifecycleStatus   string         `db:"lifecycle_status"`
	ConsumptionStatus string         `db:"consumption_status"`
	ConsumedAt        sql.NullString `db:"consumed_at"`
	Remark            string         `db:"remark"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

type memberRow struct {
	ReservationID     string         `db:"reservation_id"`
	PersonID          string         `db:"person_id"`
	ConsumptionStatus string         `db:"consumption_status"`
	ConsumedAt        sql.NullString `db:"consumed_at"`
}

// CreateReservation checks the meal slot for member overlap and inserts the
// reservation with its member rows as one atomic unit.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || len(reservation.Members) == 0 {
		return persistence.ErrConstraintViolation
	}
	if reservation.MealDate.IsZero() {
		return persistence.ErrConstraintViolation
	}

	memberIDs := reservation.MemberIDs()

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		conflicting, err := r.conflictingMembers(ctx, tx, reservation, memberIDs)
		if err != nil {
			return err
		}
		if len(conflicting) > 0 {
			return &persistence.MemberConflictError{PersonIDs: conflicting}
		}

		mealDate, err := reservation.MealDate.Value()
		if err != nil {
			return persistence.ErrConstraintViolation
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservations (id, department_id, requester_id, meal_date, meal_category,
				lifecycle_status, consumption_status, consumed_at, remark, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			reservation.ID,
			reservation.DepartmentID,
			reservation.RequesterID,
			mealDate,
			string(reservation.MealCategory),
			string(reservation.LifecycleStatus),
			string(reservation.ConsumptionStatus),
			nullableInstant(reservation.ConsumedAt),
			reservation.Remark,
			formatInstant(reservation.CreatedAt),
			formatInstant(reservation.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		for _, member := range reservation.Members {
			status := member.ConsumptionStatus
			if status == "" {
				status = persistence.ConsumptionReserved
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reservation_members (reservation_id, person_id, consumption_status, consumed_at)
				VALUES (?, ?, ?, ?)
			`, reservation.ID, member.PersonID, string(status), nullableInstant(member.ConsumedAt))
			if err != nil {
				return r.mapper.MapError(err)
			}
		}

		return nil
	})
}

// conflictingMembers returns the requested person ids already present in a
// non-cancelled reservation for the same meal slot, sorted for stable error
// reporting.
func (r *ReservationRepository) conflictingMembers(ctx context.Context, tx *sqlx.Tx, reservation persistence.Reservation, memberIDs []string) ([]string, error) {
	mealDate, err := reservation.MealDate.Value()
	if err != nil {
		return nil, persistence.ErrConstraintViolation
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT rm.person_id
		FROM reservation_members rm
		JOIN reservations res ON res.id = rm.reservation_id
		WHERE res.meal_date = ?
		  AND res.meal_category = ?
		  AND res.lifecycle_status != 'cancelled'
		  AND rm.person_id IN (?)
	`, mealDate, string(reservation.MealCategory), memberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build conflict query: %w", err)
	}

	var conflicting []string
	if err := tx.SelectContext(ctx, &conflicting, tx.Rebind(query), args...); err != nil {
		return nil, r.mapper.MapError(err)
	}

	sort.Strings(conflicting)
	return conflicting, nil
}

// GetReservation retrieves a reservation with its member rows.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	var row reservationRow
	err := r.pool.DB().GetContext(ctx, &row, `
		SELECT id, department_id, requester_id, meal_date, meal_category,
			lifecycle_status, consumption_status, consumed_at, remark, created_at, updated_at
		FROM reservations
		WHERE id = ?
	`, id)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}

	reservation, err := toReservation(row)
	if err != nil {
		return persistence.Reservation{}, err
	}

	members, err := r.loadMembers(ctx, id)
	if err != nil {
		return persistence.Reservation{}, err
	}
	reservation.Members = members

	return reservation, nil
}

// ListReservations lists reservations matching the filter, ordered by meal
// date, category, then id.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query := `
		SELECT id, department_id, requester_id, meal_date, meal_category,
			lifecycle_status, consumption_status, consumed_at, remark, created_at, updated_at
		FROM reservations
	`

	var conditions []string
	var args []any

	if filter.MealDate != nil {
		mealDate, err := filter.MealDate.Value()
		if err != nil {
			return nil, persistence.ErrConstraintViolation
		}
		conditions = append(conditions, "meal_date = ?")
		args = append(args, mealDate)
	}
	if filter.MealCategory != "" {
		conditions = append(conditions, "meal_category = ?")
		args = append(args, string(filter.MealCategory))
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, "department_id = ?")
		args = append(args, filter.DepartmentID)
	}
	if !filter.IncludeCancelled {
		conditions = append(conditions, "lifecycle_status != 'cancelled'")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY meal_date ASC, meal_category ASC, id ASC"

	var rows []reservationRow
	if err := r.pool.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}

	reservations := make([]persistence.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := toReservation(row)
		if err != nil {
			return nil, err
		}
		members, err := r.loadMembers(ctx, reservation.ID)
		if err != nil {
			return nil, err
		}
		reservation.Members = members
		reservations = append(reservations, reservation)
	}

	return reservations, nil
}

// CancelReservation moves a reservation to cancelled. The update is
// conditional: once any member consumption is recorded, or the lifecycle is
// terminal, cancellation fails with ErrConstraintViolation.
func (r *ReservationRepository) CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM reservations WHERE id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}
		if exists == 0 {
			return persistence.ErrNotFound
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE reservations
			SET lifecycle_status = 'cancelled', consumption_status = 'cancelled', updated_at = ?
			WHERE id = ?
			  AND consumption_status = 'reserved'
			  AND lifecycle_status IN ('pending', 'confirmed')
		`, formatInstant(cancelledAt), id)
		if err != nil {
			return r.mapper.MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrConstraintViolation
		}

		return nil
	})
}

// CompleteReservation administratively closes a reservation.
func (r *ReservationRepository) CompleteReservation(ctx context.Context, id string, completedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM reservations WHERE id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}
		if exists == 0 {
			return persistence.ErrNotFound
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE reservations
			SET lifecycle_status = 'completed', updated_at = ?
			WHERE id = ?
			  AND lifecycle_status IN ('pending', 'confirmed')
		`, formatInstant(completedAt), id)
		if err != nil {
			return r.mapper.MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrConstraintViolation
		}

		return nil
	})
}

func (r *ReservationRepository) loadMembers(ctx context.Context, reservationID string) ([]persistence.ReservationMember, error) {
	var rows []memberRow
	err := r.pool.DB().SelectContext(ctx, &rows, `
		SELECT reservation_id, person_id, consumption_status, consumed_at
		FROM reservation_members
		WHERE reservation_id = ?
		ORDER BY person_id ASC
	`, reservationID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	members := make([]persistence.ReservationMember, 0, len(rows))
	for _, row := range rows {
		consumedAt, err := parseNullableInstant("consumed_at", row.ConsumedAt)
		if err != nil {
			return nil, err
		}
		members = append(members, persistence.ReservationMember{
			PersonID:          row.PersonID,
			ConsumptionStatus: persistence.ConsumptionStatus(row.ConsumptionStatus),
			ConsumedAt:        consumedAt,
		})
	}

	return members, nil
}

func toReservation(row reservationRow) (persistence.Reservation, error) {
	reservation := persistence.Reservation{
		ID:                row.ID,
		DepartmentID:      row.DepartmentID,
		RequesterID:       row.RequesterID,
		MealCategory:      mealwindow.Category(row.MealCategory),
		LifecycleStatus:   persistence.LifecycleStatus(row.LifecycleStatus),
		ConsumptionStatus: persistence.ConsumptionStatus(row.ConsumptionStatus),
		Remark:            row.Remark,
	}

	if err := reservation.MealDate.Scan(row.MealDate); err != nil {
		return persistence.Reservation{}, err
	}

	var err error
	if reservation.ConsumedAt, err = parseNullableInstant("consumed_at", row.ConsumedAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseInstant("created_at", row.CreatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseInstant("updated_at", row.UpdatedAt); err != nil {
		return persistence.Reservation{}, err
	}

	return reservation, nil
}
