package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// Instants are persisted as RFC3339 text in UTC; conversion to the reference
// timezone happens only at presentation.

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseInstant(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return t, nil
}

func nullableInstant(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatInstant(*t), Valid: true}
}

func parseNullableInstant(column string, value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseInstant(column, value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
