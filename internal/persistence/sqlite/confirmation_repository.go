package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/canteen-reservation/internal/persistence"
)

// ConfirmationRepository implements persistence.ConfirmationRepository using
// SQLite. The reserved-to-consumed transition is a conditional update whose
// affected-row count decides the outcome, with the UNIQUE constraint on
// confirmation_log(reservation_id, person_id) as the storage backstop.
type ConfirmationRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewConfirmationRepository creates a new SQLite confirmation repository.
func NewConfirmationRepository(pool *ConnectionPool) *ConfirmationRepository {
	return &ConfirmationRepository{pool: pool, mapper: NewErrorMapper()}
}

type logEntryRow struct {
	ID            string `db:"id"`
	ReservationID string `db:"reservation_id"`
	PersonID      string `db:"person_id"`
	ActorID       string `db:"actor_id"`
	Channel       string `db:"channel"`
	ConfirmedAt   string `db:"confirmed_at"`
	Note          string `db:"note"`
}

// ConfirmMember executes the whole reserved-to-consumed transition inside
// one transaction. Nothing is partially applied: any failure rolls back the
// member update, the reservation update, the log insert, and the token
// stamp together.
func (r *ConfirmationRepository) ConfirmMember(ctx context.Context, params persistence.ConfirmMemberParams) (persistence.ConfirmationLogEntry, error) {
	if params.PersonID == "" || params.EntryID == "" || !params.Channel.IsValid() {
		return persistence.ConfirmationLogEntry{}, persistence.ErrConstraintViolation
	}

	entry := persistence.ConfirmationLogEntry{
		ID:          params.EntryID,
		PersonID:    params.PersonID,
		ActorID:     params.ActorID,
		Channel:     params.Channel,
		ConfirmedAt: params.ConfirmedAt.UTC(),
		Note:        params.Note,
	}

	err := r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		reservationID, memberStatus, err := r.locateMember(ctx, tx, params)
		if err != nil {
			return err
		}
		entry.ReservationID = reservationID

		if memberStatus != string(persistence.ConsumptionReserved) {
			return fmt.Errorf("%w: member already consumed", persistence.ErrDuplicate)
		}

		confirmedAt := formatInstant(params.ConfirmedAt)

		result, err := tx.ExecContext(ctx, `
			UPDATE reservation_members
			SET consumption_status = 'consumed', consumed_at = ?
			WHERE reservation_id = ? AND person_id = ? AND consumption_status = 'reserved'
		`, confirmedAt, reservationID, params.PersonID)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: member already consumed", persistence.ErrDuplicate)
		}

		// First confirmation flips the reservation level status and
		// advances a pending lifecycle to confirmed.
		if _, err := tx.ExecContext(ctx, `
			UPDATE reservations
			SET consumption_status = 'consumed',
				consumed_at = COALESCE(consumed_at, ?),
				lifecycle_status = CASE WHEN lifecycle_status = 'pending' THEN 'confirmed' ELSE lifecycle_status END,
				updated_at = ?
			WHERE id = ?
		`, confirmedAt, confirmedAt, reservationID); err != nil {
			return r.mapper.MapError(err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO confirmation_log (id, reservation_id, person_id, actor_id, channel, confirmed_at, note)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, reservationID, entry.PersonID, entry.ActorID, string(entry.Channel), confirmedAt, entry.Note); err != nil {
			return r.mapper.MapError(err)
		}

		if params.ConsumeTokenID != "" {
			result, err := tx.ExecContext(ctx, `
				UPDATE badge_tokens
				SET used_at = ?, updated_at = ?
				WHERE id = ? AND status = 'active' AND used_at IS NULL
			`, confirmedAt, confirmedAt, params.ConsumeTokenID)
			if err != nil {
				return r.mapper.MapError(err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("%w: badge token already consumed", persistence.ErrDuplicate)
			}
		}

		return nil
	})
	if err != nil {
		return persistence.ConfirmationLogEntry{}, err
	}

	return entry, nil
}

// locateMember finds the member row targeted by the confirmation: by
// reservation id when supplied, otherwise by meal slot. Rows still reserved
// are preferred so a consumed duplicate is reported as such rather than
// hiding a reservable row.
func (r *ConfirmationRepository) locateMember(ctx context.Context, tx *sqlx.Tx, params persistence.ConfirmMemberParams) (string, string, error) {
	var row struct {
		ReservationID string `db:"id"`
		MemberStatus  string `db:"member_status"`
	}

	if params.ReservationID != "" {
		err := tx.GetContext(ctx, &row, `
			SELECT res.id AS id, rm.consumption_status AS member_status
			FROM reservations res
			JOIN reservation_members rm ON rm.reservation_id = res.id
			WHERE res.id = ?
			  AND rm.person_id = ?
			  AND res.lifecycle_status IN ('pending', 'confirmed')
		`, params.ReservationID, params.PersonID)
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", persistence.ErrNotFound
		}
		if err != nil {
			return "", "", r.mapper.MapError(err)
		}
		return row.ReservationID, row.MemberStatus, nil
	}

	if params.MealDate.IsZero() || !params.MealCategory.IsValid() {
		return "", "", persistence.ErrConstraintViolation
	}

	mealDate, err := params.MealDate.Value()
	if err != nil {
		return "", "", persistence.ErrConstraintViolation
	}

	err = tx.GetContext(ctx, &row, `
		SELECT res.id AS id, rm.consumption_status AS member_status
		FROM reservations res
		JOIN reservation_members rm ON rm.reservation_id = res.id
		WHERE res.meal_date = ?
		  AND res.meal_category = ?
		  AND rm.person_id = ?
		  AND res.lifecycle_status IN ('pending', 'confirmed')
		ORDER BY CASE rm.consumption_status WHEN 'reserved' THEN 0 ELSE 1 END, res.id
		LIMIT 1
	`, mealDate, string(params.MealCategory), params.PersonID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", persistence.ErrNotFound
	}
	if err != nil {
		return "", "", r.mapper.MapError(err)
	}
	return row.ReservationID, row.MemberStatus, nil
}

// AppendEntry inserts a confirmation log entry. The log is append-only;
// duplicate (reservation, person) pairs are rejected by the unique
// constraint.
func (r *ConfirmationRepository) AppendEntry(ctx context.Context, entry persistence.ConfirmationLogEntry) error {
	if entry.ID == "" || entry.ReservationID == "" || entry.PersonID == "" || !entry.Channel.IsValid() {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO confirmation_log (id, reservation_id, person_id, actor_id, channel, confirmed_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ReservationID, entry.PersonID, entry.ActorID, string(entry.Channel), formatInstant(entry.ConfirmedAt), entry.Note)
	return r.mapper.MapError(err)
}

// ListEntries returns matching entries ordered by confirmation time
// descending, then id. Each call re-executes against current state.
func (r *ConfirmationRepository) ListEntries(ctx context.Context, filter persistence.ConfirmationLogFilter) ([]persistence.ConfirmationLogEntry, error) {
	query := `
		SELECT id, reservation_id, person_id, actor_id, channel, confirmed_at, note
		FROM confirmation_log
	`

	var conditions []string
	var args []any

	if filter.ReservationID != "" {
		conditions = append(conditions, "reservation_id = ?")
		args = append(args, filter.ReservationID)
	}
	if filter.PersonID != "" {
		conditions = append(conditions, "person_id = ?")
		args = append(args, filter.PersonID)
	}
	if filter.Channel != "" {
		conditions = append(conditions, "channel = ?")
		args = append(args, string(filter.Channel))
	}
	if filter.ConfirmedAfter != nil {
		conditions = append(conditions, "confirmed_at >= ?")
		args = append(args, formatInstant(*filter.ConfirmedAfter))
	}
	if filter.ConfirmedBefore != nil {
		conditions = append(conditions, "confirmed_at < ?")
		args = append(args, formatInstant(*filter.ConfirmedBefore))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY confirmed_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []logEntryRow
	if err := r.pool.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}

	entries := make([]persistence.ConfirmationLogEntry, 0, len(rows))
	for _, row := range rows {
		confirmedAt, err := parseInstant("confirmed_at", row.ConfirmedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, persistence.ConfirmationLogEntry{
			ID:            row.ID,
			ReservationID: row.ReservationID,
			PersonID:      row.PersonID,
			ActorID:       row.ActorID,
			Channel:       persistence.ConfirmationChannel(row.Channel),
			ConfirmedAt:   confirmedAt,
			Note:          row.Note,
		})
	}

	return entries, nil
}
