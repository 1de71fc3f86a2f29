// Package civildate provides a calendar date detached from time-of-day and
// timezone. A Date is never derived from an instant except through TodayIn,
// so "2025-09-17" stays "2025-09-17" no matter how the process or storage
// engine is zoned.
package civildate

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Layout is the canonical textual form of a Date.
const Layout = "2006-01-02"

// Date identifies one calendar day as a (year, month, day) triple.
// The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New constructs a Date from its components.
func New(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// Parse converts a "YYYY-MM-DD" value into a Date. The input must round-trip
// exactly; "2025-02-30" and "2025-2-3" are both rejected.
func Parse(value string) (Date, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return Date{}, fmt.Errorf("civildate: parse %q: %w", value, err)
	}
	d := Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
	if d.String() != value {
		return Date{}, fmt.Errorf("civildate: parse %q: not a canonical date", value)
	}
	return d, nil
}

// TodayIn derives the calendar day of the supplied instant in the supplied
// location. This is the only sanctioned instant-to-date crossing.
func TodayIn(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// Today derives the calendar day of the supplied instant in the reference
// timezone.
func Today(now time.Time) Date {
	return TodayIn(now, ReferenceLocation())
}

// ReferenceLocation returns the single timezone in which "today" and meal
// windows are evaluated.
func ReferenceLocation() *time.Location {
	return time.FixedZone("JST", 9*60*60)
}

// IsZero reports whether the Date is the invalid zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String returns the canonical "YYYY-MM-DD" form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compare orders two dates: -1 when d is earlier, 0 when equal, 1 when later.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return compareInt(d.Year, other.Year)
	case d.Month != other.Month:
		return compareInt(int(d.Month), int(other.Month))
	default:
		return compareInt(d.Day, other.Day)
	}
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

// After reports whether d falls strictly after other.
func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

// Equal reports whether both values identify the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Compare(other) == 0
}

// AddDays returns the date n calendar days after d (before when n is
// negative). Month and year boundaries are normalised.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Value implements driver.Valuer, persisting the canonical text form.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("civildate: cannot persist zero date")
	}
	return d.String(), nil
}

// Scan implements sql.Scanner, accepting the canonical text form.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("civildate: cannot scan %T", src)
	}
}

// MarshalJSON encodes the date as a "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("civildate: unmarshal: %w", err)
	}
	parsed, err := Parse(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
