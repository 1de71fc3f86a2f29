package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

func TestConfirmationRepository_ConfirmMember(t *testing.T) {
	pool := setupTestPool(t)
	reservations := NewReservationRepository(pool)
	confirmations := NewConfirmationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")
	seedPerson(t, pool, "bob", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	if err := reservations.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice", "bob")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	confirmedAt := testBaseTime.Add(time.Hour)

	t.Run("first confirmation transitions member, reservation and log together", func(t *testing.T) {
		entry, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
			ReservationID: "rsv1",
			PersonID:      "alice",
			EntryID:       "log1",
			ActorID:       "alice",
			Channel:       persistence.ChannelSelf,
			ConfirmedAt:   confirmedAt,
			Note:          "hello",
		})
		if err != nil {
			t.Fatalf("ConfirmMember failed: %v", err)
		}
		if entry.ReservationID != "rsv1" {
			t.Fatalf("expected rsv1, got %s", entry.ReservationID)
		}

		stored, err := reservations.GetReservation(ctx, "rsv1")
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if stored.ConsumptionStatus != persistence.ConsumptionConsumed {
			t.Fatalf("expected reservation consumed, got %s", stored.ConsumptionStatus)
		}
		if stored.LifecycleStatus != persistence.LifecycleConfirmed {
			t.Fatalf("expected lifecycle confirmed, got %s", stored.LifecycleStatus)
		}
		if stored.ConsumedAt == nil || !stored.ConsumedAt.Equal(confirmedAt.UTC()) {
			t.Fatalf("expected consumed_at %v, got %v", confirmedAt.UTC(), stored.ConsumedAt)
		}

		member, ok := stored.Member("alice")
		if !ok {
			t.Fatal("expected alice member row")
		}
		if member.ConsumptionStatus != persistence.ConsumptionConsumed {
			t.Fatalf("expected alice consumed, got %s", member.ConsumptionStatus)
		}

		other, ok := stored.Member("bob")
		if !ok {
			t.Fatal("expected bob member row")
		}
		if other.ConsumptionStatus != persistence.ConsumptionReserved {
			t.Fatalf("bob must stay reserved, got %s", other.ConsumptionStatus)
		}

		entries, err := confirmations.ListEntries(ctx, persistence.ConfirmationLogFilter{ReservationID: "rsv1"})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 audit entry, got %d", len(entries))
		}
		if entries[0].Note != "hello" {
			t.Fatalf("expected note retained, got %q", entries[0].Note)
		}
	})

	t.Run("second confirmation of the same member is ErrDuplicate", func(t *testing.T) {
		_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
			ReservationID: "rsv1",
			PersonID:      "alice",
			EntryID:       "log2",
			ActorID:       "alice",
			Channel:       persistence.ChannelSelf,
			ConfirmedAt:   confirmedAt.Add(time.Minute),
		})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		entries, err := confirmations.ListEntries(ctx, persistence.ConfirmationLogFilter{ReservationID: "rsv1"})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("duplicate must not add audit entries, got %d", len(entries))
		}
	})

	t.Run("other members remain confirmable", func(t *testing.T) {
		_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
			ReservationID: "rsv1",
			PersonID:      "bob",
			EntryID:       "log3",
			ActorID:       "supervisor",
			Channel:       persistence.ChannelAdmin,
			ConfirmedAt:   confirmedAt.Add(2 * time.Minute),
		})
		if err != nil {
			t.Fatalf("ConfirmMember failed: %v", err)
		}
	})

	t.Run("unknown person on the reservation is ErrNotFound", func(t *testing.T) {
		_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
			ReservationID: "rsv1",
			PersonID:      "mallory",
			EntryID:       "log4",
			ActorID:       "mallory",
			Channel:       persistence.ChannelSelf,
			ConfirmedAt:   confirmedAt,
		})
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConfirmationRepository_ConfirmBySlot(t *testing.T) {
	pool := setupTestPool(t)
	reservations := NewReservationRepository(pool)
	confirmations := NewConfirmationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	if err := reservations.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	t.Run("locates the reservation by meal slot", func(t *testing.T) {
		entry, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
			PersonID:     "alice",
			MealDate:     date,
			MealCategory: mealwindow.CategoryLunch,
			EntryID:      "log1",
			ActorID:      "alice",
			Channel:      persistence.ChannelBadge,
			ConfirmedAt:  testBaseTime,
		})
		if err != nil {
			t.Fatalf("ConfirmMember failed: %v", err)
		}
		if entry.ReservationID != "rsv1" {
			t.Fatalf("expected rsv1, got %s", entry.ReservationID)
		}
	})

	t.Run("a slot without a reservation is ErrNotFound", func(t *testing.T) {
		_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
			PersonID:     "alice",
			MealDate:     date,
			MealCategory: mealwindow.CategoryDinner,
			EntryID:      "log2",
			ActorID:      "alice",
			Channel:      persistence.ChannelBadge,
			ConfirmedAt:  testBaseTime,
		})
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConfirmationRepository_CancelledReservationNotConfirmable(t *testing.T) {
	pool := setupTestPool(t)
	reservations := NewReservationRepository(pool)
	confirmations := NewConfirmationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	if err := reservations.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}
	if err := reservations.CancelReservation(ctx, "rsv1", testBaseTime); err != nil {
		t.Fatalf("CancelReservation failed: %v", err)
	}

	_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
		ReservationID: "rsv1",
		PersonID:      "alice",
		EntryID:       "log1",
		ActorID:       "alice",
		Channel:       persistence.ChannelSelf,
		ConfirmedAt:   testBaseTime,
	})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirmationRepository_ConcurrentConfirms(t *testing.T) {
	pool := setupTestPool(t)
	reservations := NewReservationRepository(pool)
	confirmations := NewConfirmationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	if err := reservations.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	const confirmers = 10
	results := make([]error, confirmers)

	var wg sync.WaitGroup
	for i := 0; i < confirmers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
				ReservationID: "rsv1",
				PersonID:      "alice",
				EntryID:       fmt.Sprintf("log-%d", idx),
				ActorID:       "alice",
				Channel:       persistence.ChannelSelf,
				ConfirmedAt:   testBaseTime.Add(time.Duration(idx) * time.Millisecond),
			})
			results[idx] = err
		}(i)
	}
	wg.Wait()

	var successes, duplicates int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, persistence.ErrDuplicate):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
	if duplicates != confirmers-1 {
		t.Fatalf("expected %d duplicates, got %d", confirmers-1, duplicates)
	}

	entries, err := confirmations.ListEntries(ctx, persistence.ConfirmationLogFilter{ReservationID: "rsv1"})
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 audit entry, got %d", len(entries))
	}
}

func TestConfirmationRepository_SingleUseTokenStamping(t *testing.T) {
	pool := setupTestPool(t)
	reservations := NewReservationRepository(pool)
	confirmations := NewConfirmationRepository(pool)
	badges := NewBadgeTokenRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")
	seedPerson(t, pool, "bob", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	if err := reservations.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice", "bob")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	token := persistence.BadgeToken{
		ID:         "tok1",
		PersonID:   "alice",
		SecretHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Status:     persistence.BadgeTokenActive,
		SingleUse:  true,
		CreatedAt:  testBaseTime,
		UpdatedAt:  testBaseTime,
	}
	if err := badges.CreateBadgeToken(ctx, token); err != nil {
		t.Fatalf("CreateBadgeToken failed: %v", err)
	}

	_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
		ReservationID:  "rsv1",
		PersonID:       "alice",
		EntryID:        "log1",
		ActorID:        "alice",
		Channel:        persistence.ChannelBadge,
		ConfirmedAt:    testBaseTime,
		ConsumeTokenID: "tok1",
	})
	if err != nil {
		t.Fatalf("ConfirmMember failed: %v", err)
	}

	stored, err := badges.GetBadgeToken(ctx, "tok1")
	if err != nil {
		t.Fatalf("GetBadgeToken failed: %v", err)
	}
	if stored.UsedAt == nil {
		t.Fatal("expected token stamped used")
	}

	t.Run("a stamped token cannot be consumed again", func(t *testing.T) {
		_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
			ReservationID:  "rsv1",
			PersonID:       "bob",
			EntryID:        "log2",
			ActorID:        "bob",
			Channel:        persistence.ChannelBadge,
			ConfirmedAt:    testBaseTime,
			ConsumeTokenID: "tok1",
		})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		stored, err := reservations.GetReservation(ctx, "rsv1")
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		member, _ := stored.Member("bob")
		if member.ConsumptionStatus != persistence.ConsumptionReserved {
			t.Fatalf("failed stamp must roll back the member update, got %s", member.ConsumptionStatus)
		}

		entries, err := confirmations.ListEntries(ctx, persistence.ConfirmationLogFilter{PersonID: "bob"})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("failed stamp must roll back the log insert, got %d entries", len(entries))
		}
	})
}

func TestConfirmationRepository_AppendAndList(t *testing.T) {
	pool := setupTestPool(t)
	reservations := NewReservationRepository(pool)
	confirmations := NewConfirmationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")
	seedPerson(t, pool, "bob", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	if err := reservations.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice", "bob")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	first := persistence.ConfirmationLogEntry{
		ID:            "log1",
		ReservationID: "rsv1",
		PersonID:      "alice",
		ActorID:       "alice",
		Channel:       persistence.ChannelSelf,
		ConfirmedAt:   testBaseTime,
	}
	second := persistence.ConfirmationLogEntry{
		ID:            "log2",
		ReservationID: "rsv1",
		PersonID:      "bob",
		ActorID:       "supervisor",
		Channel:       persistence.ChannelAdmin,
		ConfirmedAt:   testBaseTime.Add(time.Hour),
	}

	if err := confirmations.AppendEntry(ctx, first); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	if err := confirmations.AppendEntry(ctx, second); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	t.Run("duplicate pair is rejected", func(t *testing.T) {
		dup := first
		dup.ID = "log3"
		if err := confirmations.AppendEntry(ctx, dup); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("orders newest first", func(t *testing.T) {
		entries, err := confirmations.ListEntries(ctx, persistence.ConfirmationLogFilter{})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].ID != "log2" || entries[1].ID != "log1" {
			t.Fatalf("unexpected order: %s, %s", entries[0].ID, entries[1].ID)
		}
	})

	t.Run("filters by channel and time bounds", func(t *testing.T) {
		entries, err := confirmations.ListEntries(ctx, persistence.ConfirmationLogFilter{Channel: persistence.ChannelAdmin})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(entries) != 1 || entries[0].ID != "log2" {
			t.Fatalf("expected only log2, got %v", entries)
		}

		before := testBaseTime.Add(time.Minute)
		entries, err = confirmations.ListEntries(ctx, persistence.ConfirmationLogFilter{ConfirmedBefore: &before})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(entries) != 1 || entries[0].ID != "log1" {
			t.Fatalf("expected only log1, got %v", entries)
		}
	})

	t.Run("applies the limit", func(t *testing.T) {
		entries, err := confirmations.ListEntries(ctx, persistence.ConfirmationLogFilter{Limit: 1})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(entries) != 1 || entries[0].ID != "log2" {
			t.Fatalf("expected newest entry only, got %v", entries)
		}
	})
}
