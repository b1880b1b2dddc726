// Package store defines the logical data-access interface shared by the
// remote PostgreSQL store and the local sqlite fallback, plus the adapter
// that routes between them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eventsx/backend/internal/models"
)

// Domain errors surfaced directly to callers. Everything else is treated as
// a storage fault and subject to the adapter's fallback policy.
var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrDuplicateRegistration = errors.New("email already registered for this event")
	ErrUserNotFound          = errors.New("user not found")
	ErrBadCredential         = errors.New("invalid credentials")
	ErrEventNotFound         = errors.New("event not found")
	ErrAttendeeNotFound      = errors.New("attendee not found")
)

// IsDomainError reports whether err is a business conflict rather than a
// storage fault. Domain errors must not trigger the fallback path: a
// duplicate email on the remote store is just as duplicate locally.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrDuplicateRegistration) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBadCredential) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrAttendeeNotFound)
}

// RegisterUserParams holds the fields for user creation.
type RegisterUserParams struct {
	Email     string
	Password  string // plain; hashed before persistence
	Role      models.Role
	Contact   string
	FirstName string
	LastName  string
}

// UpdateStatusParams holds the fields for an attendee status change.
// ActorID records who performed a check-in.
type UpdateStatusParams struct {
	Status  models.AttendeeStatus
	ActorID *uuid.UUID
}

// Store is the logical operation surface both backends implement.
// Every method may block on I/O and honors the context deadline.
type Store interface {
	// Users. RegisterUser fails with ErrDuplicateEmail; LoginUser verifies the
	// bcrypt hash and stamps last_login, failing with ErrUserNotFound or
	// ErrBadCredential.
	RegisterUser(ctx context.Context, p RegisterUserParams) (*models.User, error)
	LoginUser(ctx context.Context, email, password string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)

	// Events. GetEvent fails with ErrEventNotFound; GetAllEvents carries a
	// derived AttendeeCount per row; DeleteEvent is a soft delete on the
	// remote store and a cascading hard delete on the local one.
	AddEvent(ctx context.Context, e *models.Event) (*models.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetAllEvents(ctx context.Context) ([]models.Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, u models.EventUpdate) (*models.Event, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error

	// Attendees. RegisterAttendee fails with ErrDuplicateRegistration on a
	// repeated (event, email) pair. GetAttendeesByEvent excludes cancelled
	// attendees. SearchAttendees matches name/email/contact
	// case-insensitively; the remote store also matches the QR code exactly.
	RegisterAttendee(ctx context.Context, a *models.Attendee) (*models.Attendee, error)
	GetAttendeesByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
	UpdateAttendeeStatus(ctx context.Context, attendeeID uuid.UUID, p UpdateStatusParams) (*models.Attendee, error)
	SearchAttendees(ctx context.Context, eventID uuid.UUID, query string) ([]models.Attendee, error)

	// Aggregates, recomputed from attendee rows on every call.
	GetEventAnalytics(ctx context.Context, eventID uuid.UUID) (*models.EventAnalytics, error)
	GetDashboardStats(ctx context.Context, ownerID *uuid.UUID) (*models.DashboardStats, error)

	// HealthCheck is the lightweight probe used for mode selection.
	HealthCheck(ctx context.Context) error
}

// Dumper exposes the unfiltered event dump migration works from.
// GetAllEvents applies visibility filters (public, non-deleted) that must
// not hide rows from a data copy. Both backends implement it.
type Dumper interface {
	DumpEvents(ctx context.Context) ([]models.Event, error)
}

// Mode identifies which backend the adapter routes to.
type Mode int32

const (
	ModeUndetermined Mode = iota
	ModeRemote
	ModeLocal
)

func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeLocal:
		return "local"
	default:
		return "undetermined"
	}
}

// DatabaseStatus describes the adapter's current backend and its health.
type DatabaseStatus struct {
	Mode      string    `json:"mode"`
	Status    string    `json:"status"` // connected | error
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MigrationCounts is the per-entity outcome of one migration run. Skipped
// rows already existed on the remote side; a re-run moves only what the
// previous run missed.
type MigrationCounts struct {
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// MigrationReport summarizes a local-to-remote migration. Partial failure
// is expected; a user or event that fails does not block the rest.
type MigrationReport struct {
	Users     MigrationCounts `json:"users"`
	Events    MigrationCounts `json:"events"`
	Attendees MigrationCounts `json:"attendees"`
}
