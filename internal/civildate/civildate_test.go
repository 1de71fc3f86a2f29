package civildate

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	values := []string{"2025-09-17", "2024-02-29", "1999-12-31", "2025-01-01"}
	for _, value := range values {
		d, err := Parse(value)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", value, err)
		}
		if got := d.String(); got != value {
			t.Fatalf("Parse(%q).String() = %q", value, got)
		}
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	values := []string{"", "2025-02-30", "2025-13-01", "2025-9-17", "17-09-2025", "2025-09-17T00:00:00Z"}
	for _, value := range values {
		if _, err := Parse(value); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", value)
		}
	}
}

func TestTodayInIgnoresProcessTimezone(t *testing.T) {
	t.Parallel()

	// 2025-09-17 23:30 JST is 2025-09-17 14:30 UTC and 2025-09-18 in
	// UTC+13; the civil day must track only the requested location.
	instant := time.Date(2025, 9, 17, 14, 30, 0, 0, time.UTC)

	if got := Today(instant); got.String() != "2025-09-17" {
		t.Fatalf("Today returned %s, want 2025-09-17", got)
	}
	if got := TodayIn(instant, time.FixedZone("UTC+13", 13*60*60)); got.String() != "2025-09-18" {
		t.Fatalf("TodayIn(UTC+13) returned %s, want 2025-09-18", got)
	}
	if got := TodayIn(instant, time.FixedZone("UTC-8", -8*60*60)); got.String() != "2025-09-17" {
		t.Fatalf("TodayIn(UTC-8) returned %s, want 2025-09-17", got)
	}
}

func TestTodayNearMidnightBoundary(t *testing.T) {
	t.Parallel()

	// 15:30 UTC is already the next day in the reference zone.
	instant := time.Date(2025, 9, 17, 15, 30, 0, 0, time.UTC)
	if got := Today(instant); got.String() != "2025-09-18" {
		t.Fatalf("Today returned %s, want 2025-09-18", got)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"2025-09-17", "2025-09-17", 0},
		{"2025-09-16", "2025-09-17", -1},
		{"2025-09-18", "2025-09-17", 1},
		{"2024-12-31", "2025-01-01", -1},
		{"2025-08-31", "2025-09-01", -1},
	}

	for _, tc := range cases {
		a := mustParse(t, tc.a)
		b := mustParse(t, tc.b)
		if got := a.Compare(b); got != tc.want {
			t.Fatalf("Compare(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		if got := a.Before(b); got != (tc.want < 0) {
			t.Fatalf("Before(%s, %s) = %v", tc.a, tc.b, got)
		}
	}
}

func TestAddDays(t *testing.T) {
	t.Parallel()

	cases := []struct {
		start string
		days  int
		want  string
	}{
		{"2025-09-17", 1, "2025-09-18"},
		{"2025-09-17", -1, "2025-09-16"},
		{"2025-08-31", 1, "2025-09-01"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2024-12-31", 1, "2025-01-01"},
	}

	for _, tc := range cases {
		got := mustParse(t, tc.start).AddDays(tc.days)
		if got.String() != tc.want {
			t.Fatalf("%s.AddDays(%d) = %s, want %s", tc.start, tc.days, got, tc.want)
		}
	}
}

func TestSQLValueScanRoundTrip(t *testing.T) {
	t.Parallel()

	d := mustParse(t, "2025-09-17")
	value, err := d.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if value != "2025-09-17" {
		t.Fatalf("Value = %v, want 2025-09-17", value)
	}

	var scanned Date
	if err := scanned.Scan("2025-09-17"); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if !scanned.Equal(d) {
		t.Fatalf("Scan produced %s, want %s", scanned, d)
	}

	if err := scanned.Scan(42); err == nil {
		t.Fatal("Scan(int) succeeded, want error")
	}
}

func TestZeroValueRejected(t *testing.T) {
	t.Parallel()

	var d Date
	if !d.IsZero() {
		t.Fatal("zero Date not reported as zero")
	}
	if _, err := d.Value(); err == nil {
		t.Fatal("Value on zero Date succeeded, want error")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	d := mustParse(t, "2025-09-17")
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != `"2025-09-17"` {
		t.Fatalf("Marshal = %s", data)
	}

	var decoded Date
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !decoded.Equal(d) {
		t.Fatalf("Unmarshal produced %s, want %s", decoded, d)
	}

	if err := json.Unmarshal([]byte(`"not-a-date"`), &decoded); err == nil {
		t.Fatal("Unmarshal accepted invalid date")
	}
}

func mustParse(t *testing.T, value string) Date {
	t.Helper()
	d, err := Parse(value)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", value, err)
	}
	return d
}
