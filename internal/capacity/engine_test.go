package capacity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/internal/store/storetest"
)

func newTestEngine(t *testing.T) (*Engine, *storetest.Mem) {
	t.Helper()
	mem := storetest.New()
	return NewEngine(mem, zap.NewNop()), mem
}

func seedEvent(t *testing.T, mem *storetest.Mem, capacity *int) *models.Event {
	t.Helper()
	e, err := mem.AddEvent(context.Background(), &models.Event{
		Title:        "Tech Summit",
		StartDate:    time.Now().AddDate(0, 0, -1),
		EndDate:      time.Now().AddDate(0, 0, 1),
		MaxAttendees: capacity,
		OwnerID:      uuid.New(),
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return e
}

func seedAttendee(t *testing.T, mem *storetest.Mem, eventID uuid.UUID, email string) *models.Attendee {
	t.Helper()
	a, err := mem.RegisterAttendee(context.Background(), &models.Attendee{
		EventID: eventID,
		Name:    "Attendee " + email,
		Email:   email,
	})
	if err != nil {
		t.Fatalf("seed attendee: %v", err)
	}
	return a
}

func superadmin() Actor {
	return Actor{ID: uuid.New(), Role: models.RoleSuperadmin}
}

func TestRegisterValidation(t *testing.T) {
	engine, mem := newTestEngine(t)
	event := seedEvent(t, mem, nil)

	tests := []struct {
		name     string
		attendee models.Attendee
	}{
		{"missing name", models.Attendee{EventID: event.ID, Email: "a@b.com"}},
		{"missing email", models.Attendee{EventID: event.ID, Name: "A"}},
		{"blank name", models.Attendee{EventID: event.ID, Name: "   ", Email: "a@b.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Register(context.Background(), &tt.attendee)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("want ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegisterSoftCap(t *testing.T) {
	engine, mem := newTestEngine(t)
	cap2 := 2
	event := seedEvent(t, mem, &cap2)

	for i, email := range []string{"one@x.com", "two@x.com"} {
		res, err := engine.Register(context.Background(), &models.Attendee{
			EventID: event.ID, Name: "N", Email: email,
		})
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		if res.CapacityExceeded {
			t.Fatalf("register %d: unexpected capacity_exceeded", i)
		}
	}

	// Third registration still succeeds but carries the warning.
	res, err := engine.Register(context.Background(), &models.Attendee{
		EventID: event.ID, Name: "N", Email: "three@x.com",
	})
	if err != nil {
		t.Fatalf("over-capacity register: %v", err)
	}
	if !res.CapacityExceeded {
		t.Fatal("want capacity_exceeded=true past capacity")
	}
	if res.RegisteredCount != 3 {
		t.Fatalf("want registered_count 3, got %d", res.RegisteredCount)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	engine, mem := newTestEngine(t)
	event := seedEvent(t, mem, nil)
	seedAttendee(t, mem, event.ID, "dup@x.com")

	_, err := engine.Register(context.Background(), &models.Attendee{
		EventID: event.ID, Name: "N", Email: "dup@x.com",
	})
	if !errors.Is(err, store.ErrDuplicateRegistration) {
		t.Fatalf("want ErrDuplicateRegistration, got %v", err)
	}
}

func TestCheckInHardCapAndRevert(t *testing.T) {
	engine, mem := newTestEngine(t)
	cap2 := 2
	event := seedEvent(t, mem, &cap2)
	admin := superadmin()

	a1 := seedAttendee(t, mem, event.ID, "one@x.com")
	a2 := seedAttendee(t, mem, event.ID, "two@x.com")
	a3 := seedAttendee(t, mem, event.ID, "three@x.com")

	for _, a := range []*models.Attendee{a1, a2} {
		got, err := engine.CheckIn(context.Background(), event.ID, a.ID, admin)
		if err != nil {
			t.Fatalf("check-in %s: %v", a.Email, err)
		}
		if !got.Attended || got.CheckInTime == nil {
			t.Fatalf("check-in %s: attended flag or timestamp not set", a.Email)
		}
	}

	// At capacity the third check-in is rejected and the attendee unchanged.
	if _, err := engine.CheckIn(context.Background(), event.ID, a3.ID, admin); !errors.Is(err, ErrCapacityReached) {
		t.Fatalf("want ErrCapacityReached, got %v", err)
	}

	// Reverting one frees exactly one seat.
	if _, err := engine.Revert(context.Background(), a1.ID, admin); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if _, err := engine.CheckIn(context.Background(), event.ID, a3.ID, admin); err != nil {
		t.Fatalf("check-in after revert: %v", err)
	}
	if _, err := engine.CheckIn(context.Background(), event.ID, a1.ID, admin); !errors.Is(err, ErrCapacityReached) {
		t.Fatalf("want ErrCapacityReached after refill, got %v", err)
	}
}

func TestCheckInAlreadyAttendedIsIdempotent(t *testing.T) {
	engine, mem := newTestEngine(t)
	cap1 := 1
	event := seedEvent(t, mem, &cap1)
	admin := superadmin()
	a := seedAttendee(t, mem, event.ID, "one@x.com")

	if _, err := engine.CheckIn(context.Background(), event.ID, a.ID, admin); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	got, err := engine.CheckIn(context.Background(), event.ID, a.ID, admin)
	if err != nil {
		t.Fatalf("repeat check-in: %v", err)
	}
	if !got.Attended {
		t.Fatal("repeat check-in should leave attendee attended")
	}
}

func TestCheckInOutsideWindow(t *testing.T) {
	engine, mem := newTestEngine(t)
	event, err := mem.AddEvent(context.Background(), &models.Event{
		Title:     "Past Event",
		StartDate: time.Now().AddDate(0, 0, -10),
		EndDate:   time.Now().AddDate(0, 0, -5),
		OwnerID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	a := seedAttendee(t, mem, event.ID, "late@x.com")

	if _, err := engine.CheckIn(context.Background(), event.ID, a.ID, superadmin()); !errors.Is(err, ErrOutsideWindow) {
		t.Fatalf("want ErrOutsideWindow, got %v", err)
	}
}

func TestCheckInRequiresSuperadmin(t *testing.T) {
	engine, mem := newTestEngine(t)
	event := seedEvent(t, mem, nil)
	a := seedAttendee(t, mem, event.ID, "one@x.com")

	for _, role := range []models.Role{models.RoleUser, models.RoleOwner} {
		actor := Actor{ID: uuid.New(), Role: role}
		if _, err := engine.CheckIn(context.Background(), event.ID, a.ID, actor); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("role %s: want ErrPermissionDenied, got %v", role, err)
		}
		if _, err := engine.Revert(context.Background(), a.ID, actor); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("role %s revert: want ErrPermissionDenied, got %v", role, err)
		}
	}
}

func TestIncreaseCapacityRatchet(t *testing.T) {
	engine, mem := newTestEngine(t)
	cap5 := 5
	event := seedEvent(t, mem, &cap5)
	admin := superadmin()

	tests := []struct {
		name   string
		newCap int
	}{
		{"zero", 0},
		{"negative", -3},
		{"equal to current", 5},
		{"below current", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.IncreaseCapacity(context.Background(), event.ID, tt.newCap, admin)
			if !errors.Is(err, ErrInvalidCapacity) {
				t.Fatalf("want ErrInvalidCapacity, got %v", err)
			}
		})
	}

	updated, err := engine.IncreaseCapacity(context.Background(), event.ID, 8, admin)
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if updated.MaxAttendees == nil || *updated.MaxAttendees != 8 {
		t.Fatalf("want capacity 8, got %v", updated.MaxAttendees)
	}

	// Rejected values leave the stored capacity untouched.
	if _, err := engine.IncreaseCapacity(context.Background(), event.ID, 8, admin); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("want ErrInvalidCapacity on repeat, got %v", err)
	}
	got, err := mem.GetEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if *got.MaxAttendees != 8 {
		t.Fatalf("capacity changed by rejected update: %d", *got.MaxAttendees)
	}
}

func TestIncreaseCapacityVisibleToCheckIn(t *testing.T) {
	engine, mem := newTestEngine(t)
	cap1 := 1
	event := seedEvent(t, mem, &cap1)
	admin := superadmin()

	a1 := seedAttendee(t, mem, event.ID, "one@x.com")
	a2 := seedAttendee(t, mem, event.ID, "two@x.com")

	if _, err := engine.CheckIn(context.Background(), event.ID, a1.ID, admin); err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	if _, err := engine.CheckIn(context.Background(), event.ID, a2.ID, admin); !errors.Is(err, ErrCapacityReached) {
		t.Fatalf("want ErrCapacityReached, got %v", err)
	}
	if _, err := engine.IncreaseCapacity(context.Background(), event.ID, 2, admin); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if _, err := engine.CheckIn(context.Background(), event.ID, a2.ID, admin); err != nil {
		t.Fatalf("check-in after increase: %v", err)
	}
}

func TestCheckInUnlimitedCapacity(t *testing.T) {
	engine, mem := newTestEngine(t)
	event := seedEvent(t, mem, nil)
	admin := superadmin()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		a := seedAttendee(t, mem, event.ID, email)
		if _, err := engine.CheckIn(context.Background(), event.ID, a.ID, admin); err != nil {
			t.Fatalf("check-in %s: %v", email, err)
		}
	}
}
