package canteen

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

// ConfirmationService is the confirmation transaction engine: it drives the
// at-most-once reserved-to-consumed transition over the self, admin and
// badge channels, and exposes the append-only audit trail.
type ConfirmationService struct {
	confirmations persistence.ConfirmationRepository
	reservations  persistence.ReservationRepository
	badges        persistence.BadgeTokenRepository
	directory     PersonDirectory
	signingSecret []byte
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewConfirmationService wires dependencies for confirmation operations.
func NewConfirmationService(confirmations persistence.ConfirmationRepository, reservations persistence.ReservationRepository, badges persistence.BadgeTokenRepository, directory PersonDirectory, signingSecret []byte, idGenerator func() string, now func() time.Time) *ConfirmationService {
	return NewConfirmationServiceWithLogger(confirmations, reservations, badges, directory, signingSecret, idGenerator, now, nil)
}

// NewConfirmationServiceWithLogger is NewConfirmationService with an
// explicit base logger.
func NewConfirmationServiceWithLogger(confirmations persistence.ConfirmationRepository, reservations persistence.ReservationRepository, badges persistence.BadgeTokenRepository, directory PersonDirectory, signingSecret []byte, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ConfirmationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ConfirmationService{
		confirmations: confirmations,
		reservations:  reservations,
		badges:        badges,
		directory:     directory,
		signingSecret: signingSecret,
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

// ConfirmSelf records a person confirming their own consumption on a named
// reservation.
func (s *ConfirmationService) ConfirmSelf(ctx context.Context, params SelfConfirmParams) (ConfirmationResult, error) {
	if err := s.ready(); err != nil {
		return ConfirmationResult{}, err
	}
	logger := serviceLogger(ctx, s.logger, "confirmation", "confirm_self",
		"reservation_id", params.ReservationID,
		"person_id", params.PersonID,
	)

	if params.ReservationID == "" || params.PersonID == "" {
		vErr := &ValidationError{}
		if params.ReservationID == "" {
			vErr.add("reservation_id", "reservation is required")
		}
		if params.PersonID == "" {
			vErr.add("person_id", "person is required")
		}
		return ConfirmationResult{}, vErr
	}

	if _, err := s.resolveConfirmationPerson(ctx, params.PersonID); err != nil {
		logger.WarnContext(ctx, "confirmation rejected", "error", err, "error_kind", ErrorKind(err))
		return ConfirmationResult{}, err
	}

	return s.confirm(ctx, logger, persistence.ConfirmMemberParams{
		ReservationID: params.ReservationID,
		PersonID:      params.PersonID,
		EntryID:       s.idGenerator(),
		ActorID:       params.PersonID,
		Channel:       persistence.ChannelSelf,
		ConfirmedAt:   s.now(),
		Note:          params.Note,
	})
}

// ConfirmAdmin records a supervisor confirming consumption on a member's
// behalf. The acting supervisor is retained in the audit trail.
func (s *ConfirmationService) ConfirmAdmin(ctx context.Context, params AdminConfirmParams) (ConfirmationResult, error) {
	if err := s.ready(); err != nil {
		return ConfirmationResult{}, err
	}
	logger := serviceLogger(ctx, s.logger, "confirmation", "confirm_admin",
		"reservation_id", params.ReservationID,
		"person_id", params.PersonID,
		"actor_id", params.ActorID,
	)

	vErr := &ValidationError{}
	if params.ReservationID == "" {
		vErr.add("reservation_id", "reservation is required")
	}
	if params.PersonID == "" {
		vErr.add("person_id", "person is required")
	}
	if params.ActorID == "" {
		vErr.add("actor_id", "acting supervisor is required")
	}
	if vErr.HasErrors() {
		return ConfirmationResult{}, vErr
	}

	if _, err := s.resolveConfirmationPerson(ctx, params.ActorID); err != nil {
		logger.WarnContext(ctx, "confirmation rejected", "error", err, "error_kind", ErrorKind(err))
		return ConfirmationResult{}, err
	}
	if _, err := s.resolveConfirmationPerson(ctx, params.PersonID); err != nil {
		logger.WarnContext(ctx, "confirmation rejected", "error", err, "error_kind", ErrorKind(err))
		return ConfirmationResult{}, err
	}

	return s.confirm(ctx, logger, persistence.ConfirmMemberParams{
		ReservationID: params.ReservationID,
		PersonID:      params.PersonID,
		EntryID:       s.idGenerator(),
		ActorID:       params.ActorID,
		Channel:       persistence.ChannelAdmin,
		ConfirmedAt:   s.now(),
		Note:          params.Note,
	})
}

// ConfirmByBadge validates a presented badge credential, resolves the
// current meal window from the server clock, and confirms the holder's
// reservation for today's slot. The window check happens before any state
// is touched; outside every window nothing is recorded.
func (s *ConfirmationService) ConfirmByBadge(ctx context.Context, params BadgeConfirmParams) (ConfirmationResult, error) {
	if err := s.ready(); err != nil {
		return ConfirmationResult{}, err
	}
	logger := serviceLogger(ctx, s.logger, "confirmation", "confirm_badge")

	token, err := s.resolveBadgeToken(ctx, params)
	if err != nil {
		logger.WarnContext(ctx, "badge rejected", "error_kind", ErrorKind(err))
		return ConfirmationResult{}, err
	}
	logger = logger.With("token_id", token.ID, "person_id", token.PersonID)

	presentedAt := s.now()
	if err := s.validateBadgeToken(token, presentedAt); err != nil {
		logger.WarnContext(ctx, "badge rejected", "error_kind", ErrorKind(err))
		return ConfirmationResult{}, err
	}

	if _, err := s.resolveConfirmationPerson(ctx, token.PersonID); err != nil {
		logger.WarnContext(ctx, "badge rejected", "error", err, "error_kind", ErrorKind(err))
		return ConfirmationResult{}, err
	}

	category := mealwindow.Resolve(presentedAt)
	if category == mealwindow.CategoryNone {
		logger.WarnContext(ctx, "badge rejected", "error_kind", ErrorKind(ErrOutsideMealWindow))
		return ConfirmationResult{}, ErrOutsideMealWindow
	}

	confirmParams := persistence.ConfirmMemberParams{
		PersonID:     token.PersonID,
		MealDate:     civildate.Today(presentedAt),
		MealCategory: category,
		EntryID:      s.idGenerator(),
		ActorID:      token.PersonID,
		Channel:      persistence.ChannelBadge,
		ConfirmedAt:  presentedAt,
		Note:         params.Note,
	}
	if token.SingleUse {
		confirmParams.ConsumeTokenID = token.ID
	}

	return s.confirm(ctx, logger.With("meal_category", category.String()), confirmParams)
}

// History returns a lazy view over the audit trail. Each range re-executes
// the query against current state; entries arrive newest first.
func (s *ConfirmationService) History(ctx context.Context, filter persistence.ConfirmationLogFilter) iter.Seq2[persistence.ConfirmationLogEntry, error] {
	return func(yield func(persistence.ConfirmationLogEntry, error) bool) {
		if s == nil || s.confirmations == nil {
			yield(persistence.ConfirmationLogEntry{}, fmt.Errorf("confirmation repository not configured"))
			return
		}
		entries, err := s.confirmations.ListEntries(ctx, filter)
		if err != nil {
			yield(persistence.ConfirmationLogEntry{}, err)
			return
		}
		for _, entry := range entries {
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (s *ConfirmationService) confirm(ctx context.Context, logger *slog.Logger, params persistence.ConfirmMemberParams) (ConfirmationResult, error) {
	entry, err := s.confirmations.ConfirmMember(ctx, params)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		logger.WarnContext(ctx, "confirmation rejected", "error_kind", ErrorKind(ErrNotReserved))
		return ConfirmationResult{}, ErrNotReserved
	case errors.Is(err, persistence.ErrDuplicate):
		logger.WarnContext(ctx, "confirmation rejected", "error_kind", ErrorKind(ErrAlreadyConfirmed))
		return ConfirmationResult{}, ErrAlreadyConfirmed
	case err != nil:
		logger.ErrorContext(ctx, "confirmation failed", "error", err)
		return ConfirmationResult{}, err
	}

	result := ConfirmationResult{
		ReservationID: entry.ReservationID,
		PersonID:      entry.PersonID,
		MealDate:      params.MealDate,
		MealCategory:  params.MealCategory,
		Channel:       entry.Channel,
		ConsumedAt:    entry.ConfirmedAt,
		LogEntryID:    entry.ID,
	}
	if result.MealDate.IsZero() {
		if reservation, err := s.reservations.GetReservation(ctx, entry.ReservationID); err == nil {
			result.MealDate = reservation.MealDate
			result.MealCategory = reservation.MealCategory
		}
	}

	logger.InfoContext(ctx, "consumption confirmed",
		"reservation_id", result.ReservationID,
		"log_entry_id", result.LogEntryID,
		"channel", string(result.Channel),
	)
	return result, nil
}

// resolveBadgeToken turns the presented credential into the persisted token
// row. Signed tokens carry the row id in their jti; plain credentials name
// the row directly and prove possession with the secret.
func (s *ConfirmationService) resolveBadgeToken(ctx context.Context, params BadgeConfirmParams) (persistence.BadgeToken, error) {
	if s.badges == nil {
		return persistence.BadgeToken{}, fmt.Errorf("badge token repository not configured")
	}

	var tokenID string
	switch {
	case params.SignedToken != "":
		claims, err := ParseBadgeToken(s.signingSecret, params.SignedToken, s.now)
		if err != nil {
			return persistence.BadgeToken{}, err
		}
		tokenID = claims.ID
	case params.TokenID != "":
		tokenID = params.TokenID
	default:
		return persistence.BadgeToken{}, ErrTokenInvalid
	}

	token, err := s.badges.GetBadgeToken(ctx, tokenID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.BadgeToken{}, ErrTokenInvalid
	}
	if err != nil {
		return persistence.BadgeToken{}, err
	}

	if params.SignedToken == "" {
		if err := VerifySecret(token.SecretHash, params.Secret); err != nil {
			return persistence.BadgeToken{}, ErrTokenInvalid
		}
	}

	return token, nil
}

func (s *ConfirmationService) validateBadgeToken(token persistence.BadgeToken, at time.Time) error {
	if token.Status == persistence.BadgeTokenRevoked {
		return ErrTokenRevoked
	}
	if token.Status != persistence.BadgeTokenActive {
		return ErrTokenInvalid
	}
	if token.ExpiresAt != nil && !at.Before(*token.ExpiresAt) {
		return ErrTokenInvalid
	}
	if token.SingleUse && token.UsedAt != nil {
		return ErrTokenInvalid
	}
	return nil
}

func (s *ConfirmationService) resolveConfirmationPerson(ctx context.Context, id string) (persistence.Person, error) {
	if s.directory == nil {
		return persistence.Person{}, fmt.Errorf("person directory not configured")
	}
	person, err := s.directory.GetPerson(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Person{}, fmt.Errorf("%w: %s", ErrPersonNotFound, id)
	}
	if err != nil {
		return persistence.Person{}, err
	}
	if !person.Active {
		return persistence.Person{}, fmt.Errorf("%w: %s", ErrPersonNotFound, id)
	}
	return person, nil
}

func (s *ConfirmationService) ready() error {
	if s == nil || s.confirmations == nil || s.reservations == nil {
		return fmt.Errorf("confirmation repositories not configured")
	}
	return nil
}
