package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

func TestReservationRepository_CreateAndGet(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")
	seedPerson(t, pool, "bob", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	reservation := testReservation("rsv1", date, mealwindow.CategoryLunch, "alice", "bob")
	reservation.Remark = "team lunch"

	if err := repo.CreateReservation(ctx, reservation); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	stored, err := repo.GetReservation(ctx, "rsv1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}

	if !stored.MealDate.Equal(date) {
		t.Fatalf("meal date round trip failed: stored %s, want %s", stored.MealDate, date)
	}
	if stored.MealCategory != mealwindow.CategoryLunch {
		t.Fatalf("expected lunch, got %s", stored.MealCategory)
	}
	if stored.LifecycleStatus != persistence.LifecyclePending {
		t.Fatalf("expected pending, got %s", stored.LifecycleStatus)
	}
	if stored.ConsumptionStatus != persistence.ConsumptionReserved {
		t.Fatalf("expected reserved, got %s", stored.ConsumptionStatus)
	}
	if stored.Remark != "team lunch" {
		t.Fatalf("expected remark retained, got %q", stored.Remark)
	}
	if len(stored.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(stored.Members))
	}
	for _, member := range stored.Members {
		if member.ConsumptionStatus != persistence.ConsumptionReserved {
			t.Fatalf("member %s not reserved: %s", member.PersonID, member.ConsumptionStatus)
		}
		if member.ConsumedAt != nil {
			t.Fatalf("member %s has a consumption instant before confirmation", member.PersonID)
		}
	}
}

// Meal dates are stored as plain YYYY-MM-DD text and must never drift
// through an instant conversion, whatever zone the process runs in.
func TestReservationRepository_MealDateIgnoresProcessZone(t *testing.T) {
	original := time.Local
	time.Local = time.FixedZone("UTC-11", -11*60*60)
	t.Cleanup(func() { time.Local = original })

	pool := setupTestPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")

	date := civildate.Date{Year: 2026, Month: 1, Day: 1}
	if err := repo.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryBreakfast, "alice")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	stored, err := repo.GetReservation(ctx, "rsv1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if got := stored.MealDate.String(); got != "2026-01-01" {
		t.Fatalf("meal date shifted under UTC-11 local zone: got %s", got)
	}

	listed, err := repo.ListReservations(ctx, persistence.ReservationFilter{MealDate: &date})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(listed) != 1 || !listed[0].MealDate.Equal(date) {
		t.Fatalf("date filter missed the reservation under UTC-11 local zone: %v", listed)
	}
}

func TestReservationRepository_GetUnknown(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewReservationRepository(pool)

	_, err := repo.GetReservation(context.Background(), "missing")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReservationRepository_MemberConflict(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")
	seedPerson(t, pool, "bob", "dept1")
	seedPerson(t, pool, "carol", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	if err := repo.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice", "bob")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	t.Run("overlapping members are rejected with every conflicting id", func(t *testing.T) {
		err := repo.CreateReservation(ctx, testReservation("rsv2", date, mealwindow.CategoryLunch, "bob", "carol", "alice"))

		var conflict *persistence.MemberConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected MemberConflictError, got %v", err)
		}
		if len(conflict.PersonIDs) != 2 {
			t.Fatalf("expected alice and bob, got %v", conflict.PersonIDs)
		}
		if conflict.PersonIDs[0] != "alice" || conflict.PersonIDs[1] != "bob" {
			t.Fatalf("expected sorted conflicting ids, got %v", conflict.PersonIDs)
		}

		if _, err := repo.GetReservation(ctx, "rsv2"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("rejected reservation must not be persisted, got %v", err)
		}
	})

	t.Run("a different category on the same date is free", func(t *testing.T) {
		if err := repo.CreateReservation(ctx, testReservation("rsv3", date, mealwindow.CategoryDinner, "alice")); err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
	})

	t.Run("a different date with the same category is free", func(t *testing.T) {
		other := civildate.Date{Year: 2026, Month: 3, Day: 12}
		if err := repo.CreateReservation(ctx, testReservation("rsv4", other, mealwindow.CategoryLunch, "alice")); err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
	})

	t.Run("cancelling frees the slot for resubmission", func(t *testing.T) {
		if err := repo.CancelReservation(ctx, "rsv1", testBaseTime); err != nil {
			t.Fatalf("CancelReservation failed: %v", err)
		}
		if err := repo.CreateReservation(ctx, testReservation("rsv5", date, mealwindow.CategoryLunch, "alice", "bob")); err != nil {
			t.Fatalf("CreateReservation after cancel failed: %v", err)
		}
	})
}

func TestReservationRepository_Cancel(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewReservationRepository(pool)
	confirmations := NewConfirmationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}

	t.Run("cancels a reserved reservation", func(t *testing.T) {
		if err := repo.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice")); err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}

		if err := repo.CancelReservation(ctx, "rsv1", testBaseTime); err != nil {
			t.Fatalf("CancelReservation failed: %v", err)
		}

		stored, err := repo.GetReservation(ctx, "rsv1")
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if stored.LifecycleStatus != persistence.LifecycleCancelled {
			t.Fatalf("expected cancelled lifecycle, got %s", stored.LifecycleStatus)
		}
		if stored.ConsumptionStatus != persistence.ConsumptionCancelled {
			t.Fatalf("expected cancelled consumption, got %s", stored.ConsumptionStatus)
		}
	})

	t.Run("cancel after consumption is rejected", func(t *testing.T) {
		if err := repo.CreateReservation(ctx, testReservation("rsv2", date, mealwindow.CategoryDinner, "alice")); err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}

		_, err := confirmations.ConfirmMember(ctx, persistence.ConfirmMemberParams{
			ReservationID: "rsv2",
			PersonID:      "alice",
			EntryID:       "log1",
			ActorID:       "alice",
			Channel:       persistence.ChannelSelf,
			ConfirmedAt:   testBaseTime,
		})
		if err != nil {
			t.Fatalf("ConfirmMember failed: %v", err)
		}

		if err := repo.CancelReservation(ctx, "rsv2", testBaseTime); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})

	t.Run("cancel twice is rejected", func(t *testing.T) {
		if err := repo.CancelReservation(ctx, "rsv1", testBaseTime); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})

	t.Run("cancel unknown reservation", func(t *testing.T) {
		if err := repo.CancelReservation(ctx, "missing", testBaseTime); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReservationRepository_Complete(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedPerson(t, pool, "alice", "dept1")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	if err := repo.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	if err := repo.CompleteReservation(ctx, "rsv1", testBaseTime); err != nil {
		t.Fatalf("CompleteReservation failed: %v", err)
	}

	stored, err := repo.GetReservation(ctx, "rsv1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if stored.LifecycleStatus != persistence.LifecycleCompleted {
		t.Fatalf("expected completed, got %s", stored.LifecycleStatus)
	}

	if err := repo.CompleteReservation(ctx, "rsv1", testBaseTime); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation on double complete, got %v", err)
	}
}

func TestReservationRepository_List(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedDepartment(t, pool, "dept1")
	seedDepartment(t, pool, "dept2")
	seedPerson(t, pool, "alice", "dept1")
	seedPerson(t, pool, "bob", "dept1")
	seedPerson(t, pool, "carol", "dept2")

	date := civildate.Date{Year: 2026, Month: 3, Day: 11}
	other := civildate.Date{Year: 2026, Month: 3, Day: 12}

	if err := repo.CreateReservation(ctx, testReservation("rsv1", date, mealwindow.CategoryLunch, "alice")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}
	carolRes := testReservation("rsv2", date, mealwindow.CategoryLunch, "carol")
	carolRes.DepartmentID = "dept2"
	if err := repo.CreateReservation(ctx, carolRes); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}
	if err := repo.CreateReservation(ctx, testReservation("rsv3", other, mealwindow.CategoryLunch, "bob")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}
	if err := repo.CancelReservation(ctx, "rsv2", testBaseTime); err != nil {
		t.Fatalf("CancelReservation failed: %v", err)
	}

	t.Run("filters by date and hides cancelled by default", func(t *testing.T) {
		listed, err := repo.ListReservations(ctx, persistence.ReservationFilter{MealDate: &date})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(listed) != 1 || listed[0].ID != "rsv1" {
			t.Fatalf("expected only rsv1, got %v", listed)
		}
		if len(listed[0].Members) != 1 {
			t.Fatalf("expected member rows loaded, got %d", len(listed[0].Members))
		}
	})

	t.Run("includes cancelled on request", func(t *testing.T) {
		listed, err := repo.ListReservations(ctx, persistence.ReservationFilter{MealDate: &date, IncludeCancelled: true})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected 2 reservations, got %d", len(listed))
		}
	})

	t.Run("filters by department", func(t *testing.T) {
		listed, err := repo.ListReservations(ctx, persistence.ReservationFilter{DepartmentID: "dept1"})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected rsv1 and rsv3, got %v", listed)
		}
	})
}
