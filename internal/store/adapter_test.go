package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/internal/store/storetest"
)

func newAdapter(remote store.Store, locker store.Locker) (*store.Adapter, *storetest.Mem) {
	local := storetest.New()
	return store.NewAdapter(remote, local, zap.NewNop(), time.Second, locker), local
}

func addEvent(t *testing.T, s store.Store, ownerID uuid.UUID) *models.Event {
	t.Helper()
	e, err := s.AddEvent(context.Background(), &models.Event{
		Title:     "Conference",
		StartDate: time.Now(),
		EndDate:   time.Now().AddDate(0, 0, 1),
		IsPublic:  true,
		OwnerID:   ownerID,
	})
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	return e
}

func TestModeWithoutRemote(t *testing.T) {
	adapter, local := newAdapter(nil, nil)
	ctx := context.Background()

	if got := adapter.Mode(ctx); got != store.ModeLocal {
		t.Fatalf("want local mode, got %s", got)
	}

	// Operations route to the local store.
	e := addEvent(t, adapter, uuid.New())
	got, err := local.GetEvent(ctx, e.ID)
	if err != nil {
		t.Fatalf("event not written locally: %v", err)
	}
	if got.Title != "Conference" {
		t.Fatalf("unexpected title %q", got.Title)
	}

	st := adapter.Status(ctx)
	if st.Mode != "local" || st.Status != "connected" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestModeProbeFailureFallsToLocal(t *testing.T) {
	remote := storetest.New()
	remote.HealthErr = errors.New("connection refused")
	adapter, _ := newAdapter(remote, nil)

	if got := adapter.Mode(context.Background()); got != store.ModeLocal {
		t.Fatalf("want local mode after failed probe, got %s", got)
	}
}

func TestPerCallFallback(t *testing.T) {
	remote := storetest.New()
	adapter, local := newAdapter(remote, nil)
	ctx := context.Background()

	if got := adapter.Mode(ctx); got != store.ModeRemote {
		t.Fatalf("want remote mode, got %s", got)
	}

	// Remote starts failing after the probe; calls fall back one at a time
	// without downgrading the mode.
	remote.Err = errors.New("server closed the connection")
	e := addEvent(t, adapter, uuid.New())

	if _, err := local.GetEvent(ctx, e.ID); err != nil {
		t.Fatalf("fallback write did not reach local store: %v", err)
	}
	if got := adapter.Mode(ctx); got != store.ModeRemote {
		t.Fatalf("fallback downgraded mode to %s", got)
	}

	// Remote recovers; the next call uses it again.
	remote.Err = nil
	e2 := addEvent(t, adapter, uuid.New())
	if _, err := remote.GetEvent(ctx, e2.ID); err != nil {
		t.Fatalf("recovered remote not used: %v", err)
	}
}

func TestDomainErrorsDoNotFallBack(t *testing.T) {
	remote := storetest.New()
	adapter, local := newAdapter(remote, nil)
	ctx := context.Background()

	// The event exists only locally; if the not-found triggered a fallback
	// the lookup would succeed.
	e := addEvent(t, local, uuid.New())
	if _, err := adapter.GetEvent(ctx, e.ID); !errors.Is(err, store.ErrEventNotFound) {
		t.Fatalf("want ErrEventNotFound from remote, got %v", err)
	}
}

func TestBothStoresFailing(t *testing.T) {
	remote := storetest.New()
	adapter, local := newAdapter(remote, nil)
	ctx := context.Background()

	adapter.Mode(ctx)
	remote.Err = errors.New("remote down")
	local.Err = errors.New("disk full")

	_, err := adapter.GetAllEvents(ctx)
	if err == nil {
		t.Fatal("want combined error")
	}
	for _, want := range []string{"remote down", "disk full"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("combined error %q missing %q", err, want)
		}
	}
}

func TestSwitchOperations(t *testing.T) {
	remote := storetest.New()
	adapter, _ := newAdapter(remote, nil)
	ctx := context.Background()

	adapter.SwitchToLocal()
	if got := adapter.Mode(ctx); got != store.ModeLocal {
		t.Fatalf("want local after switch, got %s", got)
	}

	remote.HealthErr = errors.New("still down")
	if err := adapter.SwitchToRemote(ctx); !errors.Is(err, store.ErrRemoteUnavailable) {
		t.Fatalf("want ErrRemoteUnavailable, got %v", err)
	}
	if got := adapter.Mode(ctx); got != store.ModeLocal {
		t.Fatalf("failed switch changed mode to %s", got)
	}

	remote.HealthErr = nil
	if err := adapter.SwitchToRemote(ctx); err != nil {
		t.Fatalf("switch to healthy remote: %v", err)
	}
	if got := adapter.Mode(ctx); got != store.ModeRemote {
		t.Fatalf("want remote after switch, got %s", got)
	}
}

func TestSwitchToRemoteUnconfigured(t *testing.T) {
	adapter, _ := newAdapter(nil, nil)
	if err := adapter.SwitchToRemote(context.Background()); !errors.Is(err, store.ErrRemoteUnavailable) {
		t.Fatalf("want ErrRemoteUnavailable, got %v", err)
	}
}

func seedLocalData(t *testing.T, local *storetest.Mem) (owner *models.User, event *models.Event) {
	t.Helper()
	ctx := context.Background()

	owner, err := local.RegisterUser(ctx, store.RegisterUserParams{
		Email:    "owner@x.com",
		Password: "secret123",
		Role:     models.RoleOwner,
	})
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	event = addEvent(t, local, owner.ID)

	for _, email := range []string{"first@x.com", "second@x.com"} {
		if _, err := local.RegisterAttendee(ctx, &models.Attendee{
			EventID: event.ID, Name: "N", Email: email,
		}); err != nil {
			t.Fatalf("seed attendee: %v", err)
		}
	}
	return owner, event
}

func TestMigrateFromLocalToRemote(t *testing.T) {
	remote := storetest.New()
	adapter, local := newAdapter(remote, nil)
	ctx := context.Background()

	_, event := seedLocalData(t, local)

	// Mark one attendee attended so the flag must be re-applied remotely.
	list, err := local.GetAttendeesByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("list attendees: %v", err)
	}
	checker := uuid.New()
	if _, err := local.UpdateAttendeeStatus(ctx, list[0].ID, store.UpdateStatusParams{
		Status:  models.AttendeeAttended,
		ActorID: &checker,
	}); err != nil {
		t.Fatalf("mark attended: %v", err)
	}
	attendedEmail := list[0].Email

	report, err := adapter.MigrateFromLocalToRemote(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if report.Users.Success != 1 || report.Users.Failed != 0 {
		t.Fatalf("users counts %+v", report.Users)
	}
	if report.Events.Success != 1 || report.Events.Failed != 0 {
		t.Fatalf("events counts %+v", report.Events)
	}
	if report.Attendees.Success != 2 || report.Attendees.Failed != 0 {
		t.Fatalf("attendees counts %+v", report.Attendees)
	}

	// Migrated users keep their password.
	if _, err := remote.LoginUser(ctx, "owner@x.com", "secret123"); err != nil {
		t.Fatalf("migrated user cannot log in: %v", err)
	}

	// Remote IDs differ but the attended flag survived.
	remoteEvents, err := remote.GetAllEvents(ctx)
	if err != nil || len(remoteEvents) != 1 {
		t.Fatalf("remote events: %v (%d)", err, len(remoteEvents))
	}
	if remoteEvents[0].ID == event.ID {
		t.Fatal("remote event kept the local ID")
	}
	remoteAttendees, err := remote.GetAttendeesByEvent(ctx, remoteEvents[0].ID)
	if err != nil || len(remoteAttendees) != 2 {
		t.Fatalf("remote attendees: %v (%d)", err, len(remoteAttendees))
	}
	for _, a := range remoteAttendees {
		if a.Email == attendedEmail && !a.Attended {
			t.Fatal("attended flag not re-applied after migration")
		}
		if a.Email != attendedEmail && a.Attended {
			t.Fatalf("attendee %s wrongly marked attended", a.Email)
		}
	}

	// The adapter runs in remote mode afterwards.
	if got := adapter.Mode(ctx); got != store.ModeRemote {
		t.Fatalf("want remote mode after migration, got %s", got)
	}
}

func TestMigratePartialFailure(t *testing.T) {
	remote := storetest.New()
	adapter, local := newAdapter(remote, nil)
	ctx := context.Background()

	seedLocalData(t, local)
	// Event whose owner has no account; its owner cannot be re-resolved.
	addEvent(t, local, uuid.New())

	report, err := adapter.MigrateFromLocalToRemote(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if report.Events.Success != 1 || report.Events.Failed != 1 {
		t.Fatalf("events counts %+v", report.Events)
	}
	if report.Attendees.Success != 2 {
		t.Fatalf("attendees counts %+v", report.Attendees)
	}
}

func TestMigrateRequiresHealthyRemote(t *testing.T) {
	remote := storetest.New()
	remote.HealthErr = errors.New("unreachable")
	adapter, local := newAdapter(remote, nil)

	seedLocalData(t, local)
	if _, err := adapter.MigrateFromLocalToRemote(context.Background()); !errors.Is(err, store.ErrRemoteUnavailable) {
		t.Fatalf("want ErrRemoteUnavailable, got %v", err)
	}
}

type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context) (func(), bool, error) {
	return nil, false, nil
}

func TestMigrateLockHeldElsewhere(t *testing.T) {
	remote := storetest.New()
	adapter, local := newAdapter(remote, heldLocker{})

	seedLocalData(t, local)
	if _, err := adapter.MigrateFromLocalToRemote(context.Background()); !errors.Is(err, store.ErrMigrationInProgress) {
		t.Fatalf("want ErrMigrationInProgress, got %v", err)
	}
}

func TestMigrationIsRerunnable(t *testing.T) {
	remote := storetest.New()
	adapter, local := newAdapter(remote, nil)
	ctx := context.Background()

	seedLocalData(t, local)
	if _, err := adapter.MigrateFromLocalToRemote(ctx); err != nil {
		t.Fatalf("first migrate: %v", err)
	}

	// A second run recognizes already-copied rows and reports them skipped
	// instead of duplicating or failing them.
	report, err := adapter.MigrateFromLocalToRemote(ctx)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if report.Users.Skipped != 1 || report.Users.Success != 0 || report.Users.Failed != 0 {
		t.Fatalf("second run users counts %+v", report.Users)
	}
	if report.Events.Skipped != 1 || report.Events.Success != 0 || report.Events.Failed != 0 {
		t.Fatalf("second run events counts %+v", report.Events)
	}
	if report.Attendees.Skipped != 2 || report.Attendees.Success != 0 || report.Attendees.Failed != 0 {
		t.Fatalf("second run attendees counts %+v", report.Attendees)
	}

	users, err := remote.GetAllUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("remote users after rerun: %v (%d)", err, len(users))
	}
	events, err := remote.GetAllEvents(ctx)
	if err != nil || len(events) != 1 {
		t.Fatalf("remote events after rerun: %v (%d)", err, len(events))
	}
	attendees, err := remote.GetAttendeesByEvent(ctx, events[0].ID)
	if err != nil || len(attendees) != 2 {
		t.Fatalf("remote attendees after rerun: %v (%d)", err, len(attendees))
	}
}

func TestMigrateIncludesPrivateEvents(t *testing.T) {
	remote := storetest.New()
	adapter, local := newAdapter(remote, nil)
	ctx := context.Background()

	owner, _ := seedLocalData(t, local)
	private, err := local.AddEvent(ctx, &models.Event{
		Title:     "Internal Offsite",
		StartDate: time.Now(),
		EndDate:   time.Now().AddDate(0, 0, 1),
		IsPublic:  false,
		OwnerID:   owner.ID,
	})
	if err != nil {
		t.Fatalf("add private event: %v", err)
	}
	if _, err := local.RegisterAttendee(ctx, &models.Attendee{
		EventID: private.ID, Name: "N", Email: "staff@x.com",
	}); err != nil {
		t.Fatalf("register attendee: %v", err)
	}

	report, err := adapter.MigrateFromLocalToRemote(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if report.Events.Success != 2 || report.Events.Failed != 0 {
		t.Fatalf("events counts %+v", report.Events)
	}
	if report.Attendees.Success != 3 {
		t.Fatalf("attendees counts %+v", report.Attendees)
	}

	// The private event is copied but stays off the public listing.
	listed, err := remote.GetAllEvents(ctx)
	if err != nil || len(listed) != 1 {
		t.Fatalf("remote public listing: %v (%d)", err, len(listed))
	}
	dumped, err := remote.DumpEvents(ctx)
	if err != nil || len(dumped) != 2 {
		t.Fatalf("remote dump: %v (%d)", err, len(dumped))
	}
	for _, e := range dumped {
		if e.Title != "Internal Offsite" {
			continue
		}
		if e.IsPublic {
			t.Fatal("private event migrated as public")
		}
		attendees, err := remote.GetAttendeesByEvent(ctx, e.ID)
		if err != nil || len(attendees) != 1 {
			t.Fatalf("private event attendees: %v (%d)", err, len(attendees))
		}
		return
	}
	t.Fatal("private event missing from remote dump")
}
