package events

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

func newTestService(t *testing.T) (*Service, *storetest.Mem) {
	t.Helper()
	mem := storetest.New()
	return NewService(mem, zap.NewNop()), mem
}

func validEvent(ownerID uuid.UUID) *models.Event {
	return &models.Event{
		Title:     "Launch Party",
		StartDate: time.Now().AddDate(0, 1, 0),
		EndDate:   time.Now().AddDate(0, 1, 1),
		OwnerID:   ownerID,
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	badCap := -1

	tests := []struct {
		name  string
		event models.Event
	}{
		{"missing title", models.Event{StartDate: time.Now(), EndDate: time.Now()}},
		{"missing dates", models.Event{Title: "T"}},
		{"end before start", models.Event{
			Title:     "T",
			StartDate: time.Now().AddDate(0, 0, 2),
			EndDate:   time.Now(),
		}},
		{"negative capacity", models.Event{
			Title:        "T",
			StartDate:    time.Now(),
			EndDate:      time.Now().AddDate(0, 0, 1),
			MaxAttendees: &badCap,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, &tt.event); !errors.Is(err, ErrValidation) {
				t.Fatalf("want ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateSingleDayEvent(t *testing.T) {
	svc, _ := newTestService(t)
	day := time.Now().AddDate(0, 1, 0)

	created, err := svc.Create(context.Background(), &models.Event{
		Title:     "Workshop",
		StartDate: day,
		EndDate:   day,
		OwnerID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != models.EventActive {
		t.Fatalf("want default status active, got %s", created.Status)
	}
}

func TestFindOrCreateOwner(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	// Unknown email registers an owner account.
	owner, err := svc.FindOrCreateOwner(ctx, "new@x.com", "secret123")
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if owner.Role != models.RoleOwner {
		t.Fatalf("want role owner, got %s", owner.Role)
	}

	// Same credentials again resolve to the same account.
	again, err := svc.FindOrCreateOwner(ctx, "new@x.com", "secret123")
	if err != nil {
		t.Fatalf("repeat submission: %v", err)
	}
	if again.ID != owner.ID {
		t.Fatal("repeated submission created a second account")
	}

	// Known email with the wrong password is a conflict, not a new account.
	if _, err := svc.FindOrCreateOwner(ctx, "new@x.com", "wrong-pass"); !errors.Is(err, ErrOwnerConflict) {
		t.Fatalf("want ErrOwnerConflict, got %v", err)
	}
	users, err := mem.GetAllUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("want one account, got %d", len(users))
	}
}

func TestFindOrCreateOwnerValidation(t *testing.T) {
	svc, _ := newTestService(t)
	for _, tt := range []struct{ email, password string }{
		{"", "pw"},
		{"a@b.com", ""},
	} {
		if _, err := svc.FindOrCreateOwner(context.Background(), tt.email, tt.password); !errors.Is(err, ErrValidation) {
			t.Fatalf("(%q,%q): want ErrValidation, got %v", tt.email, tt.password, err)
		}
	}
}

func TestUpdatePermissions(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	event, err := mem.AddEvent(ctx, validEvent(ownerID))
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	newTitle := "Renamed"
	update := models.EventUpdate{Title: &newTitle}

	// A stranger cannot edit.
	stranger := Actor{ID: uuid.New(), Role: models.RoleOwner}
	if _, err := svc.Update(ctx, event.ID, update, stranger); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}

	// The owner can.
	updated, err := svc.Update(ctx, event.ID, update, Actor{ID: ownerID, Role: models.RoleOwner})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("title not updated: %q", updated.Title)
	}

	// So can any superadmin.
	if _, err := svc.Update(ctx, event.ID, update, Actor{ID: uuid.New(), Role: models.RoleSuperadmin}); err != nil {
		t.Fatalf("superadmin update: %v", err)
	}
}

func TestUpdateDateValidation(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	event, err := mem.AddEvent(ctx, validEvent(ownerID))
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	actor := Actor{ID: ownerID, Role: models.RoleOwner}

	// Moving the end before the existing start is rejected.
	badEnd := event.StartDate.AddDate(0, 0, -1)
	if _, err := svc.Update(ctx, event.ID, models.EventUpdate{EndDate: &badEnd}, actor); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	event, err := mem.AddEvent(ctx, validEvent(ownerID))
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}

	if err := svc.Delete(ctx, event.ID, Actor{ID: uuid.New(), Role: models.RoleUser}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}
	if err := svc.Delete(ctx, event.ID, Actor{ID: ownerID, Role: models.RoleOwner}); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := svc.Get(ctx, event.ID); !errors.Is(err, store.ErrEventNotFound) {
		t.Fatalf("want ErrEventNotFound after delete, got %v", err)
	}
}
