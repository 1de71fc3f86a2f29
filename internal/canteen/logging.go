package canteen

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/canteen-reservation/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPastDate):
		return "past_date"
	case errors.Is(err, ErrEmptyMembers):
		return "empty_members"
	case errors.Is(err, ErrDuplicateMembers):
		return "duplicate_members"
	case errors.Is(err, ErrMemberNotFound):
		return "member_not_found"
	case errors.Is(err, ErrCrossDepartment):
		return "cross_department"
	case errors.Is(err, ErrPersonNotFound):
		return "person_not_found"
	case errors.Is(err, ErrNotReserved):
		return "not_reserved"
	case errors.Is(err, ErrAlreadyConfirmed):
		return "already_confirmed"
	case errors.Is(err, ErrOutsideMealWindow):
		return "outside_meal_window"
	case errors.Is(err, ErrNotCancellable):
		return "not_cancellable"
	case errors.Is(err, ErrNotCompletable):
		return "not_completable"
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	}

	var conflict *MemberAlreadyReservedError
	if errors.As(err, &conflict) {
		return "member_conflict"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
