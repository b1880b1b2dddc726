// Package events implements event lifecycle management: creation with the
// find-or-create-owner protocol, owner-gated editing and deletion, and the
// HTTP surface for event CRUD.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
)

var (
	// ErrValidation wraps missing/invalid input field errors.
	ErrValidation = errors.New("validation failed")
	// ErrPermissionDenied rejects edits by anyone but the owner or a
	// superadmin.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrOwnerConflict rejects creation when the owner email exists but the
	// supplied password does not match. The protocol never overwrites an
	// existing account.
	ErrOwnerConflict = errors.New("owner email exists with a different password")
)

// Actor identifies who is performing a service operation.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// Service applies the event lifecycle rules on top of a Store.
type Service struct {
	store  store.Store
	logger *zap.Logger
}

// NewService creates an event service.
func NewService(st store.Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// validate checks the fields every event needs regardless of how it is
// created or updated.
func validate(e *models.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if e.StartDate.IsZero() || e.EndDate.IsZero() {
		return fmt.Errorf("%w: start_date and end_date are required", ErrValidation)
	}
	if e.EndDate.Before(e.StartDate) {
		return fmt.Errorf("%w: end_date must not precede start_date", ErrValidation)
	}
	if e.MaxAttendees != nil && *e.MaxAttendees <= 0 {
		return fmt.Errorf("%w: max_attendees must be positive", ErrValidation)
	}
	return nil
}

// FindOrCreateOwner resolves the owner account for an anonymous event
// submission. A matching email and password logs the owner in; an unknown
// email registers a new owner account; a known email with a different
// password is a conflict. Repeated submissions with the same credentials
// are idempotent.
func (s *Service) FindOrCreateOwner(ctx context.Context, email, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: owner email and password are required", ErrValidation)
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user, err := s.store.LoginUser(ctx, email, password)
		if errors.Is(err, store.ErrBadCredential) {
			return nil, ErrOwnerConflict
		}
		return user, err
	case errors.Is(err, store.ErrUserNotFound):
		user, err := s.store.RegisterUser(ctx, store.RegisterUserParams{
			Email:    email,
			Password: password,
			Role:     models.RoleOwner,
		})
		if errors.Is(err, store.ErrDuplicateEmail) {
			// Lost a race with a concurrent submission; log in instead.
			return s.FindOrCreateOwner(ctx, email, password)
		}
		if err == nil {
			s.logger.Info("owner account created", zap.String("email", email))
		}
		return user, err
	default:
		return nil, err
	}
}

// Create validates and stores a new event.
func (s *Service) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	if err := validate(e); err != nil {
		return nil, err
	}
	if e.Status == "" {
		e.Status = models.EventActive
	}
	return s.store.AddEvent(ctx, e)
}

// Get returns one event with derived fields.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// List returns all non-deleted events.
func (s *Service) List(ctx context.Context) ([]models.Event, error) {
	return s.store.GetAllEvents(ctx)
}

// Update applies a partial update after an owner-or-superadmin check.
// Non-nil collection pointers replace the stored collection wholesale.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u models.EventUpdate, actor Actor) (*models.Event, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(event, actor) {
		return nil, ErrPermissionDenied
	}
	if u.EndDate != nil || u.StartDate != nil {
		start, end := event.StartDate, event.EndDate
		if u.StartDate != nil {
			start = *u.StartDate
		}
		if u.EndDate != nil {
			end = *u.EndDate
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%w: end_date must not precede start_date", ErrValidation)
		}
	}
	if u.MaxAttendees != nil && *u.MaxAttendees <= 0 {
		return nil, fmt.Errorf("%w: max_attendees must be positive", ErrValidation)
	}
	return s.store.UpdateEvent(ctx, id, u)
}

// Delete removes an event after an owner-or-superadmin check.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(event, actor) {
		return ErrPermissionDenied
	}
	return s.store.DeleteEvent(ctx, id)
}

func canManage(e *models.Event, actor Actor) bool {
	return actor.Role == models.RoleSuperadmin || e.OwnerID == actor.ID
}
