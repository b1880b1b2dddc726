package local

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("file:"+t.Name()+"?mode=memory&cache=shared", zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func registerOwner(t *testing.T, s *Store) *models.User {
	t.Helper()
	u, err := s.RegisterUser(context.Background(), store.RegisterUserParams{
		Email:    "owner@x.com",
		Password: "secret123",
		Role:     models.RoleOwner,
	})
	if err != nil {
		t.Fatalf("register owner: %v", err)
	}
	return u
}

func TestLoginUserStampsLastLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	registerOwner(t, s)

	before := time.Now().Add(-time.Second)
	u, err := s.LoginUser(ctx, "owner@x.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.LastLogin == nil {
		t.Fatal("login did not return a last_login stamp")
	}
	if u.LastLogin.Before(before) {
		t.Fatalf("stale last_login returned: %v", u.LastLogin)
	}

	if _, err := s.LoginUser(ctx, "owner@x.com", "wrong"); err != store.ErrBadCredential {
		t.Fatalf("bad password: got %v, want ErrBadCredential", err)
	}
}

func TestPrivateEventStaysPrivate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := registerOwner(t, s)

	created, err := s.AddEvent(ctx, &models.Event{
		Title:     "Internal Offsite",
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(48 * time.Hour),
		IsPublic:  false,
		OwnerID:   owner.ID,
	})
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	// A column default on is_public would flip an explicit false to true
	// here, because gorm omits zero-value fields on insert.
	if created.IsPublic {
		t.Fatal("private event stored as public")
	}

	got, err := s.GetEvent(ctx, created.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.IsPublic {
		t.Fatal("private event read back as public")
	}
}

func TestDumpEventsIncludesPrivate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := registerOwner(t, s)

	pub := &models.Event{
		Title:     "Open Meetup",
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(48 * time.Hour),
		IsPublic:  true,
		OwnerID:   owner.ID,
	}
	priv := &models.Event{
		Title:     "Internal Offsite",
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(48 * time.Hour),
		IsPublic:  false,
		OwnerID:   owner.ID,
	}
	for _, e := range []*models.Event{pub, priv} {
		if _, err := s.AddEvent(ctx, e); err != nil {
			t.Fatalf("add %q: %v", e.Title, err)
		}
	}

	listed, err := s.GetAllEvents(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "Open Meetup" {
		t.Fatalf("public listing: got %d events", len(listed))
	}

	dumped, err := s.DumpEvents(ctx)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if len(dumped) != 2 {
		t.Fatalf("dump: got %d events, want 2", len(dumped))
	}
	for _, e := range dumped {
		if e.OwnerEmail != "owner@x.com" {
			t.Fatalf("dump missing owner email on %q", e.Title)
		}
	}
}
