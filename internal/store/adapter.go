package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/metrics"
	"github.com/eventsx/backend/internal/models"
)

// ErrMigrationInProgress is returned when another migration holds the lock.
var ErrMigrationInProgress = errors.New("migration already in progress")

// ErrRemoteUnavailable is returned by operator actions that require a
// healthy remote store.
var ErrRemoteUnavailable = errors.New("remote store unavailable")

// Importer is the migration-support surface: inserting a user while
// preserving the stored credential hash, so migrated users keep their
// passwords. Both backends implement it.
type Importer interface {
	ImportUser(ctx context.Context, u models.User) (*models.User, error)
}

// Locker serializes migrations across processes. Acquire reports whether
// the lock was taken; release must be called when it was.
type Locker interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// Adapter routes every logical operation to the remote store when healthy
// and to the local fallback otherwise. The cached mode is determined by a
// single health probe on first use; a remote failure afterwards falls back
// to the local store for that one call without downgrading the mode.
type Adapter struct {
	remote Store // nil when the remote store is unconfigured
	local  Store
	logger *zap.Logger

	probeTimeout time.Duration
	mode         atomic.Int32

	migrateMu sync.Mutex
	locker    Locker // optional
}

// NewAdapter creates an adapter over the two backends. remote may be nil
// (unconfigured), in which case every call routes locally. locker may be
// nil; migration is then serialized in-process only.
func NewAdapter(remote, local Store, logger *zap.Logger, probeTimeout time.Duration, locker Locker) *Adapter {
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &Adapter{
		remote:       remote,
		local:        local,
		logger:       logger,
		probeTimeout: probeTimeout,
		locker:       locker,
	}
}

// Mode returns the adapter's backend mode, probing the remote store on
// first use.
func (a *Adapter) Mode(ctx context.Context) Mode {
	if m := Mode(a.mode.Load()); m != ModeUndetermined {
		return m
	}

	mode := ModeLocal
	if a.remote != nil {
		probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
		defer cancel()
		if err := a.remote.HealthCheck(probeCtx); err == nil {
			mode = ModeRemote
		} else {
			a.logger.Warn("remote store probe failed, using local fallback", zap.Error(err))
		}
	}

	// Another caller may have probed concurrently; first writer wins.
	a.mode.CompareAndSwap(int32(ModeUndetermined), int32(mode))
	return Mode(a.mode.Load())
}

// SwitchToRemote forces REMOTE mode after a fresh successful probe.
func (a *Adapter) SwitchToRemote(ctx context.Context) error {
	if a.remote == nil {
		return fmt.Errorf("%w: not configured", ErrRemoteUnavailable)
	}
	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()
	if err := a.remote.HealthCheck(probeCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	a.mode.Store(int32(ModeRemote))
	a.logger.Info("switched to remote store")
	return nil
}

// SwitchToLocal forces LOCAL mode.
func (a *Adapter) SwitchToLocal() {
	a.mode.Store(int32(ModeLocal))
	a.logger.Info("switched to local store")
}

// Status reports the current mode and backend health.
func (a *Adapter) Status(ctx context.Context) DatabaseStatus {
	mode := a.Mode(ctx)
	st := DatabaseStatus{Mode: mode.String(), Timestamp: time.Now()}

	if mode == ModeRemote {
		probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
		defer cancel()
		if err := a.remote.HealthCheck(probeCtx); err != nil {
			st.Status = "error"
			st.Message = err.Error()
			return st
		}
		st.Status = "connected"
		st.Message = "remote database connected"
		return st
	}

	st.Status = "connected"
	st.Message = "using local fallback store"
	if err := a.local.HealthCheck(ctx); err != nil {
		st.Status = "error"
		st.Message = err.Error()
	}
	return st
}

// call routes one operation. In REMOTE mode a failed remote call is retried
// against the local store; the caller sees an error only when both fail.
// Domain errors pass through untouched: a conflict is not an outage.
func call[T any](a *Adapter, ctx context.Context, op string, fn func(Store) (T, error)) (T, error) {
	if a.Mode(ctx) == ModeLocal {
		return fn(a.local)
	}

	out, err := fn(a.remote)
	if err == nil || IsDomainError(err) {
		return out, err
	}

	a.logger.Warn("remote operation failed, falling back to local",
		zap.String("op", op), zap.Error(err))
	metrics.Fallbacks.WithLabelValues(op).Inc()

	out, localErr := fn(a.local)
	if localErr == nil || IsDomainError(localErr) {
		return out, localErr
	}
	var zero T
	return zero, fmt.Errorf("both stores failed: remote: %v; local: %w", err, localErr)
}

func (a *Adapter) RegisterUser(ctx context.Context, p RegisterUserParams) (*models.User, error) {
	return call(a, ctx, "register_user", func(s Store) (*models.User, error) {
		return s.RegisterUser(ctx, p)
	})
}

func (a *Adapter) LoginUser(ctx context.Context, email, password string) (*models.User, error) {
	return call(a, ctx, "login_user", func(s Store) (*models.User, error) {
		return s.LoginUser(ctx, email, password)
	})
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return call(a, ctx, "get_user_by_email", func(s Store) (*models.User, error) {
		return s.GetUserByEmail(ctx, email)
	})
}

func (a *Adapter) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return call(a, ctx, "get_all_users", func(s Store) ([]models.User, error) {
		return s.GetAllUsers(ctx)
	})
}

func (a *Adapter) AddEvent(ctx context.Context, e *models.Event) (*models.Event, error) {
	return call(a, ctx, "add_event", func(s Store) (*models.Event, error) {
		return s.AddEvent(ctx, e)
	})
}

func (a *Adapter) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return call(a, ctx, "get_event", func(s Store) (*models.Event, error) {
		return s.GetEvent(ctx, id)
	})
}

func (a *Adapter) GetAllEvents(ctx context.Context) ([]models.Event, error) {
	return call(a, ctx, "get_all_events", func(s Store) ([]models.Event, error) {
		return s.GetAllEvents(ctx)
	})
}

func (a *Adapter) UpdateEvent(ctx context.Context, id uuid.UUID, u models.EventUpdate) (*models.Event, error) {
	return call(a, ctx, "update_event", func(s Store) (*models.Event, error) {
		return s.UpdateEvent(ctx, id, u)
	})
}

func (a *Adapter) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	_, err := call(a, ctx, "delete_event", func(s Store) (struct{}, error) {
		return struct{}{}, s.DeleteEvent(ctx, id)
	})
	return err
}

func (a *Adapter) RegisterAttendee(ctx context.Context, at *models.Attendee) (*models.Attendee, error) {
	return call(a, ctx, "register_attendee", func(s Store) (*models.Attendee, error) {
		return s.RegisterAttendee(ctx, at)
	})
}

func (a *Adapter) GetAttendeesByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	return call(a, ctx, "get_attendees_by_event", func(s Store) ([]models.Attendee, error) {
		return s.GetAttendeesByEvent(ctx, eventID)
	})
}

func (a *Adapter) UpdateAttendeeStatus(ctx context.Context, attendeeID uuid.UUID, p UpdateStatusParams) (*models.Attendee, error) {
	return call(a, ctx, "update_attendee_status", func(s Store) (*models.Attendee, error) {
		return s.UpdateAttendeeStatus(ctx, attendeeID, p)
	})
}

func (a *Adapter) SearchAttendees(ctx context.Context, eventID uuid.UUID, query string) ([]models.Attendee, error) {
	return call(a, ctx, "search_attendees", func(s Store) ([]models.Attendee, error) {
		return s.SearchAttendees(ctx, eventID, query)
	})
}

func (a *Adapter) GetEventAnalytics(ctx context.Context, eventID uuid.UUID) (*models.EventAnalytics, error) {
	return call(a, ctx, "get_event_analytics", func(s Store) (*models.EventAnalytics, error) {
		return s.GetEventAnalytics(ctx, eventID)
	})
}

func (a *Adapter) GetDashboardStats(ctx context.Context, ownerID *uuid.UUID) (*models.DashboardStats, error) {
	return call(a, ctx, "get_dashboard_stats", func(s Store) (*models.DashboardStats, error) {
		return s.GetDashboardStats(ctx, ownerID)
	})
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := call(a, ctx, "health_check", func(s Store) (struct{}, error) {
		return struct{}{}, s.HealthCheck(ctx)
	})
	return err
}

// MigrateFromLocalToRemote copies all local users, events, and attendees
// into the remote store. One-shot and explicitly triggered; partial failure
// is tolerated and reported per entity. Owner references are re-resolved by
// email and attendance flags re-applied after recreation, because remote
// IDs differ from local ones.
func (a *Adapter) MigrateFromLocalToRemote(ctx context.Context) (*MigrationReport, error) {
	if !a.migrateMu.TryLock() {
		return nil, ErrMigrationInProgress
	}
	defer a.migrateMu.Unlock()

	if a.locker != nil {
		release, acquired, err := a.locker.Acquire(ctx)
		if err != nil {
			// Best effort: a broken lock service must not block migration.
			a.logger.Warn("migration lock unavailable, proceeding", zap.Error(err))
		} else if !acquired {
			return nil, ErrMigrationInProgress
		} else {
			defer release()
		}
	}

	if err := a.SwitchToRemote(ctx); err != nil {
		return nil, fmt.Errorf("migration requires the remote store: %w", err)
	}

	report := &MigrationReport{}

	users, err := a.local.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("read local users: %w", err)
	}
	importer, _ := a.remote.(Importer)
	for _, u := range users {
		var impErr error
		if importer != nil {
			_, impErr = importer.ImportUser(ctx, u)
		} else {
			impErr = fmt.Errorf("remote store does not support user import")
		}
		switch {
		case impErr == nil:
			report.Users.Success++
			metrics.MigratedEntities.WithLabelValues("user", "success").Inc()
		case errors.Is(impErr, ErrDuplicateEmail):
			report.Users.Skipped++
			metrics.MigratedEntities.WithLabelValues("user", "skipped").Inc()
		default:
			a.logger.Warn("failed to migrate user", zap.String("email", u.Email), zap.Error(impErr))
			report.Users.Failed++
			metrics.MigratedEntities.WithLabelValues("user", "failed").Inc()
		}
	}

	// The dump bypasses the public/active listing filters: every local row
	// is copied, not just what GetAllEvents would show an anonymous caller.
	events, err := dumpEvents(ctx, a.local)
	if err != nil {
		return nil, fmt.Errorf("read local events: %w", err)
	}

	existing, err := a.remoteEventIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("index remote events: %w", err)
	}
	for _, e := range events {
		a.migrateEvent(ctx, e, existing, report)
	}

	a.logger.Info("migration completed",
		zap.Int("users_ok", report.Users.Success), zap.Int("users_skipped", report.Users.Skipped), zap.Int("users_failed", report.Users.Failed),
		zap.Int("events_ok", report.Events.Success), zap.Int("events_skipped", report.Events.Skipped), zap.Int("events_failed", report.Events.Failed),
		zap.Int("attendees_ok", report.Attendees.Success), zap.Int("attendees_skipped", report.Attendees.Skipped), zap.Int("attendees_failed", report.Attendees.Failed),
	)
	return report, nil
}

func dumpEvents(ctx context.Context, s Store) ([]models.Event, error) {
	if d, ok := s.(Dumper); ok {
		return d.DumpEvents(ctx)
	}
	return s.GetAllEvents(ctx)
}

// eventKey identifies an event across backends for re-run detection. IDs
// change on recreation, so owner email plus title is the identity.
func eventKey(ownerEmail, title string) string {
	return strings.ToLower(ownerEmail) + "\x00" + title
}

// remoteEventIndex maps existing remote events by identity so a second
// migration run recognizes rows the first run already copied.
func (a *Adapter) remoteEventIndex(ctx context.Context) (map[string]uuid.UUID, error) {
	events, err := dumpEvents(ctx, a.remote)
	if err != nil {
		return nil, err
	}
	index := make(map[string]uuid.UUID, len(events))
	for _, e := range events {
		index[eventKey(e.OwnerEmail, e.Title)] = e.ID
	}
	return index, nil
}

func (a *Adapter) migrateEvent(ctx context.Context, e models.Event, existing map[string]uuid.UUID, report *MigrationReport) {
	fail := func(err error) {
		a.logger.Warn("failed to migrate event", zap.String("title", e.Title), zap.Error(err))
		report.Events.Failed++
		metrics.MigratedEntities.WithLabelValues("event", "failed").Inc()
	}

	// Already copied by an earlier run. Still walk the attendees below:
	// a partial first run may have left some of them behind.
	remoteID, present := existing[eventKey(e.OwnerEmail, e.Title)]
	if present {
		report.Events.Skipped++
		metrics.MigratedEntities.WithLabelValues("event", "skipped").Inc()
	} else {
		owner, err := a.remote.GetUserByEmail(ctx, e.OwnerEmail)
		if err != nil {
			fail(fmt.Errorf("resolve owner %q: %w", e.OwnerEmail, err))
			return
		}

		copied := e
		copied.ID = uuid.Nil
		copied.OwnerID = owner.ID
		copied.AttendeeCount = 0
		created, err := a.remote.AddEvent(ctx, &copied)
		if err != nil {
			fail(err)
			return
		}
		remoteID = created.ID
		existing[eventKey(e.OwnerEmail, e.Title)] = remoteID
		report.Events.Success++
		metrics.MigratedEntities.WithLabelValues("event", "success").Inc()
	}

	attendees, err := a.local.GetAttendeesByEvent(ctx, e.ID)
	if err != nil {
		a.logger.Warn("failed to read local attendees", zap.String("event", e.Title), zap.Error(err))
		return
	}
	for _, at := range attendees {
		copiedAt := at
		copiedAt.ID = uuid.Nil
		copiedAt.EventID = remoteID
		copiedAt.Attended = false
		copiedAt.Status = models.AttendeeRegistered
		copiedAt.CheckInTime = nil
		copiedAt.QRCodeData = ""

		recreated, err := a.remote.RegisterAttendee(ctx, &copiedAt)
		if errors.Is(err, ErrDuplicateRegistration) {
			report.Attendees.Skipped++
			metrics.MigratedEntities.WithLabelValues("attendee", "skipped").Inc()
			continue
		}
		if err != nil {
			a.logger.Warn("failed to migrate attendee", zap.String("email", at.Email), zap.Error(err))
			report.Attendees.Failed++
			metrics.MigratedEntities.WithLabelValues("attendee", "failed").Inc()
			continue
		}
		if at.Attended {
			_, err = a.remote.UpdateAttendeeStatus(ctx, recreated.ID, UpdateStatusParams{
				Status:  models.AttendeeAttended,
				ActorID: at.CheckInBy,
			})
			if err != nil {
				a.logger.Warn("failed to re-apply attendance", zap.String("email", at.Email), zap.Error(err))
				report.Attendees.Failed++
				metrics.MigratedEntities.WithLabelValues("attendee", "failed").Inc()
				continue
			}
		}
		report.Attendees.Success++
		metrics.MigratedEntities.WithLabelValues("attendee", "success").Inc()
	}
}
