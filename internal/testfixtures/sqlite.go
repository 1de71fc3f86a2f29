package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/canteen-reservation/internal/persistence"
	"github.com/example/canteen-reservation/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool          *sqlite.ConnectionPool
	Reservations  persistence.ReservationRepository
	Confirmations persistence.ConfirmationRepository
	BadgeTokens   persistence.BadgeTokenRepository
	Directory     persistence.DirectoryRepository
	Menus         persistence.MenuRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness over a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// also registers a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "canteen.db")

	pool, err := sqlite.NewConnectionPool("file:" + path)
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:          pool,
		Reservations:  sqlite.NewReservationRepository(pool),
		Confirmations: sqlite.NewConfirmationRepository(pool),
		BadgeTokens:   sqlite.NewBadgeTokenRepository(pool),
		Directory:     sqlite.NewDirectoryRepository(pool),
		Menus:         sqlite.NewMenuRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedDepartment persists a department fixture and returns the stored value.
func (h *SQLiteHarness) SeedDepartment(tb testing.TB, fixture DepartmentFixture) persistence.Department {
	tb.Helper()
	department := fixture.Persistence()
	if err := h.Directory.CreateDepartment(context.Background(), department); err != nil {
		tb.Fatalf("failed to seed department %s: %v", department.ID, err)
	}
	return department
}

// SeedPerson persists a person fixture and returns the stored value.
func (h *SQLiteHarness) SeedPerson(tb testing.TB, fixture PersonFixture) persistence.Person {
	tb.Helper()
	person := fixture.Persistence()
	if err := h.Directory.CreatePerson(context.Background(), person); err != nil {
		tb.Fatalf("failed to seed person %s: %v", person.ID, err)
	}
	return person
}

// SeedReservation persists a reservation fixture and returns the stored
// value.
func (h *SQLiteHarness) SeedReservation(tb testing.TB, fixture ReservationFixture) persistence.Reservation {
	tb.Helper()
	reservation := fixture.Persistence()
	if err := h.Reservations.CreateReservation(context.Background(), reservation); err != nil {
		tb.Fatalf("failed to seed reservation %s: %v", reservation.ID, err)
	}
	return reservation
}

// SeedBadgeToken persists a badge token fixture and returns the stored
// value.
func (h *SQLiteHarness) SeedBadgeToken(tb testing.TB, fixture BadgeTokenFixture) persistence.BadgeToken {
	tb.Helper()
	token := fixture.Persistence()
	if err := h.BadgeTokens.CreateBadgeToken(context.Background(), token); err != nil {
		tb.Fatalf("failed to seed badge token %s: %v", token.ID, err)
	}
	return token
}

// SeedMenu persists a menu fixture and returns the stored value.
func (h *SQLiteHarness) SeedMenu(tb testing.TB, fixture MenuFixture) persistence.Menu {
	tb.Helper()
	menu := fixture.Persistence()
	if err := h.Menus.CreateMenu(context.Background(), menu); err != nil {
		tb.Fatalf("failed to seed menu %s: %v", menu.ID, err)
	}
	return menu
}
