// Package capacity enforces the attendance rules layered on the storage
// adapter: registration is soft-capped (warns, never blocks), check-in is
// hard-capped, and capacity itself is a one-way ratchet.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/metrics"
	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
)

var (
	// ErrCapacityReached rejects a check-in once attended_count has hit the
	// event's capacity. A business outcome, not a system fault.
	ErrCapacityReached = errors.New("event capacity reached")
	// ErrOutsideWindow rejects check-ins outside the event's date window.
	ErrOutsideWindow = errors.New("check-in is only available during the event dates")
	// ErrPermissionDenied rejects actors without the required role.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidCapacity rejects a capacity change that is not a strict
	// increase to a positive value.
	ErrInvalidCapacity = errors.New("capacity must be a positive value greater than the current capacity")
	// ErrValidation wraps missing/invalid input field errors.
	ErrValidation = errors.New("validation failed")
)

// Actor identifies who is performing an engine operation.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// Engine applies the capacity and attendance rules on top of a Store.
// Counts are always recomputed from a fresh attendee read; no cached
// counter gates any decision.
type Engine struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates an engine over the given store.
func NewEngine(st store.Store, logger *zap.Logger) *Engine {
	return &Engine{store: st, logger: logger, now: time.Now}
}

// RegisterResult is the outcome of a registration.
type RegisterResult struct {
	Attendee         *models.Attendee `json:"attendee"`
	RegisteredCount  int              `json:"registered_count"`
	CapacityExceeded bool             `json:"capacity_exceeded"`
}

// Register creates a registration. Registration never blocks on capacity;
// when the event is already at or over capacity the result carries a
// warning flag for the caller to surface.
func (e *Engine) Register(ctx context.Context, a *models.Attendee) (*RegisterResult, error) {
	if strings.TrimSpace(a.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(a.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}

	event, err := e.store.GetEvent(ctx, a.EventID)
	if err != nil {
		return nil, err
	}

	attendees, err := e.store.GetAttendeesByEvent(ctx, a.EventID)
	if err != nil {
		return nil, err
	}
	exceeded := event.MaxAttendees != nil && len(attendees) >= *event.MaxAttendees

	created, err := e.store.RegisterAttendee(ctx, a)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{
		Attendee:         created,
		RegisteredCount:  len(attendees) + 1,
		CapacityExceeded: exceeded,
	}, nil
}

// CheckIn marks an attendee as attended. Requires the superadmin role, the
// current date inside the event's start/end window, and a fresh attended
// count below capacity. An already-attended attendee is returned unchanged.
func (e *Engine) CheckIn(ctx context.Context, eventID, attendeeID uuid.UUID, actor Actor) (*models.Attendee, error) {
	if actor.Role != models.RoleSuperadmin {
		return nil, ErrPermissionDenied
	}

	event, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return nil, err
	}

	if !withinWindow(e.now(), event.StartDate, event.EndDate) {
		metrics.CheckIns.WithLabelValues("outside_window").Inc()
		return nil, ErrOutsideWindow
	}

	attendees, err := e.store.GetAttendeesByEvent(ctx, eventID)
	if err != nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return nil, err
	}

	attended := 0
	var target *models.Attendee
	for i := range attendees {
		if attendees[i].Attended {
			attended++
		}
		if attendees[i].ID == attendeeID {
			target = &attendees[i]
		}
	}
	if target == nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return nil, store.ErrAttendeeNotFound
	}
	if target.Attended {
		return target, nil
	}

	if event.MaxAttendees != nil && attended >= *event.MaxAttendees {
		e.logger.Info("check-in blocked at capacity",
			zap.String("event_id", eventID.String()),
			zap.Int("attended", attended),
			zap.Int("capacity", *event.MaxAttendees))
		metrics.CheckIns.WithLabelValues("capacity_reached").Inc()
		return nil, ErrCapacityReached
	}

	actorID := actor.ID
	updated, err := e.store.UpdateAttendeeStatus(ctx, attendeeID, store.UpdateStatusParams{
		Status:  models.AttendeeAttended,
		ActorID: &actorID,
	})
	if err != nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.CheckIns.WithLabelValues("ok").Inc()
	return updated, nil
}

// Revert flips an attended attendee back to registered. Requires the
// superadmin role; never capacity- or window-checked, since the count only
// decreases.
func (e *Engine) Revert(ctx context.Context, attendeeID uuid.UUID, actor Actor) (*models.Attendee, error) {
	if actor.Role != models.RoleSuperadmin {
		return nil, ErrPermissionDenied
	}
	return e.store.UpdateAttendeeStatus(ctx, attendeeID, store.UpdateStatusParams{
		Status: models.AttendeeRegistered,
	})
}

// IncreaseCapacity raises an event's capacity. The new value must be a
// positive integer strictly greater than the current one (or than zero when
// unlimited was never bounded). Capacity never decreases through this path.
func (e *Engine) IncreaseCapacity(ctx context.Context, eventID uuid.UUID, newCapacity int, actor Actor) (*models.Event, error) {
	if actor.Role != models.RoleSuperadmin {
		return nil, ErrPermissionDenied
	}
	if newCapacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	event, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.MaxAttendees != nil && newCapacity <= *event.MaxAttendees {
		return nil, ErrInvalidCapacity
	}

	return e.store.UpdateEvent(ctx, eventID, models.EventUpdate{MaxAttendees: &newCapacity})
}

// withinWindow reports whether now falls on or between the start and end
// dates, comparing dates only.
func withinWindow(now, start, end time.Time) bool {
	day := dateOnly(now)
	return !day.Before(dateOnly(start)) && !day.After(dateOnly(end))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
