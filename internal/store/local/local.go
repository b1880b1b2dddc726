// Package local implements the Store interface on an embedded sqlite
// database. It is always available and serves as the fallback backend when
// the remote store is unreachable or unconfigured.
//
// One deliberate asymmetry with the remote store: deleting an event here is
// a hard delete cascading to its attendees, where the remote store only
// flips the status.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/pkg/utils"
)

// Store is the embedded sqlite implementation of store.Store.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New opens (or creates) the sqlite database at path and migrates the schema.
func New(path string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.EventOrganizer{},
		&models.EventSpeaker{},
		&models.EventSponsor{},
		&models.EventMediaPartner{},
		&models.EventGuest{},
		&models.Attendee{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	log.Info("local fallback store ready", zap.String("path", path))
	return &Store{db: db, logger: log}, nil
}

// HealthCheck verifies the embedded database answers a trivial query.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec(`SELECT 1`).Error
}

// RegisterUser inserts a new user with a bcrypt-hashed password.
func (s *Store) RegisterUser(ctx context.Context, p store.RegisterUserParams) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var existing models.User
	if err := db.Where("email = ?", p.Email).First(&existing).Error; err == nil {
		return nil, store.ErrDuplicateEmail
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(p.Password)
	if err != nil {
		return nil, err
	}
	role := p.Role
	if role == "" {
		role = models.RoleUser
	}

	u := models.User{
		Email:        p.Email,
		PasswordHash: hash,
		Role:         role,
		Contact:      p.Contact,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ImportUser inserts a user preserving the stored credential hash.
func (s *Store) ImportUser(ctx context.Context, u models.User) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var existing models.User
	if err := db.Where("email = ?", u.Email).First(&existing).Error; err == nil {
		return nil, store.ErrDuplicateEmail
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	out := u
	out.ID = uuid.Nil
	if err := db.Create(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginUser verifies credentials and stamps last_login.
func (s *Store) LoginUser(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, store.ErrBadCredential
	}

	now := time.Now()
	u.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(u).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail returns an active user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetAllUsers returns every active user, newest first.
func (s *Store) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var list []models.User
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// AddEvent inserts an event with its nested collections.
func (s *Store) AddEvent(ctx context.Context, e *models.Event) (*models.Event, error) {
	out := *e
	if out.Status == "" {
		out.Status = models.EventActive
	}
	if out.Currency == "" {
		out.Currency = "USD"
	}
	if err := s.db.WithContext(ctx).Create(&out).Error; err != nil {
		return nil, err
	}
	return s.GetEvent(ctx, out.ID)
}

// GetEvent returns an event with collections and derived fields.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	db := s.db.WithContext(ctx)

	var e models.Event
	err := db.
		Preload("Organizers").Preload("Speakers").Preload("Sponsors").
		Preload("MediaPartners").Preload("Guests").
		Where("id = ? AND status != ?", id, models.EventDeleted).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.fillDerived(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) fillDerived(ctx context.Context, e *models.Event) error {
	db := s.db.WithContext(ctx)

	var count int64
	err := db.Model(&models.Attendee{}).
		Where("event_id = ? AND status != ?", e.ID, models.AttendeeCancelled).
		Count(&count).Error
	if err != nil {
		return err
	}
	e.AttendeeCount = int(count)

	var owner models.User
	if err := db.Select("email").Where("id = ?", e.OwnerID).First(&owner).Error; err == nil {
		e.OwnerEmail = owner.Email
	}
	return nil
}

// GetAllEvents returns public, non-deleted events with derived counts,
// soonest first.
func (s *Store) GetAllEvents(ctx context.Context) ([]models.Event, error) {
	var list []models.Event
	err := s.db.WithContext(ctx).
		Preload("Organizers").Preload("Speakers").Preload("Sponsors").
		Preload("MediaPartners").Preload("Guests").
		Where("status != ? AND is_public = ?", models.EventDeleted, true).
		Order("start_date ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	for i := range list {
		if err := s.fillDerived(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// DumpEvents returns every stored event with collections and derived
// fields, no visibility filter. Migration reads through this so private
// and non-active events are copied too.
func (s *Store) DumpEvents(ctx context.Context) ([]models.Event, error) {
	var list []models.Event
	err := s.db.WithContext(ctx).
		Preload("Organizers").Preload("Speakers").Preload("Sponsors").
		Preload("MediaPartners").Preload("Guests").
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	for i := range list {
		if err := s.fillDerived(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// UpdateEvent applies a partial update; non-nil collection pointers replace
// the stored collection wholesale.
func (s *Store) UpdateEvent(ctx context.Context, id uuid.UUID, u models.EventUpdate) (*models.Event, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.Event
		err := tx.Where("id = ? AND status != ?", id, models.EventDeleted).First(&e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.ErrEventNotFound
		}
		if err != nil {
			return err
		}

		updates := buildEventUpdates(u)
		if len(updates) > 0 {
			if err := tx.Model(&e).Updates(updates).Error; err != nil {
				return err
			}
		}
		return replaceCollections(tx, id, u)
	})
	if err != nil {
		return nil, err
	}
	return s.GetEvent(ctx, id)
}

func buildEventUpdates(u models.EventUpdate) map[string]any {
	updates := map[string]any{}
	if u.Title != nil {
		updates["title"] = *u.Title
	}
	if u.Description != nil {
		updates["description"] = *u.Description
	}
	if u.StartDate != nil {
		updates["start_date"] = *u.StartDate
	}
	if u.EndDate != nil {
		updates["end_date"] = *u.EndDate
	}
	if u.StartTime != nil {
		updates["start_time"] = *u.StartTime
	}
	if u.EndTime != nil {
		updates["end_time"] = *u.EndTime
	}
	if u.Venue != nil {
		updates["venue"] = *u.Venue
	}
	if u.Address != nil {
		updates["address"] = *u.Address
	}
	if u.MaxAttendees != nil {
		updates["max_attendees"] = *u.MaxAttendees
	}
	if u.RegistrationFee != nil {
		updates["registration_fee"] = *u.RegistrationFee
	}
	if u.Currency != nil {
		updates["currency"] = *u.Currency
	}
	if u.IsPublic != nil {
		updates["is_public"] = *u.IsPublic
	}
	if u.RequiresApproval != nil {
		updates["requires_approval"] = *u.RequiresApproval
	}
	if u.Status != nil {
		updates["status"] = string(*u.Status)
	}
	return updates
}

func replaceCollections(tx *gorm.DB, id uuid.UUID, u models.EventUpdate) error {
	if u.Organizers != nil {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventOrganizer{}).Error; err != nil {
			return err
		}
		for i := range *u.Organizers {
			(*u.Organizers)[i].ID = 0
			(*u.Organizers)[i].EventID = id
		}
		if len(*u.Organizers) > 0 {
			if err := tx.Create(u.Organizers).Error; err != nil {
				return err
			}
		}
	}
	if u.Speakers != nil {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventSpeaker{}).Error; err != nil {
			return err
		}
		for i := range *u.Speakers {
			(*u.Speakers)[i].ID = 0
			(*u.Speakers)[i].EventID = id
		}
		if len(*u.Speakers) > 0 {
			if err := tx.Create(u.Speakers).Error; err != nil {
				return err
			}
		}
	}
	if u.Sponsors != nil {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventSponsor{}).Error; err != nil {
			return err
		}
		for i := range *u.Sponsors {
			(*u.Sponsors)[i].ID = 0
			(*u.Sponsors)[i].EventID = id
		}
		if len(*u.Sponsors) > 0 {
			if err := tx.Create(u.Sponsors).Error; err != nil {
				return err
			}
		}
	}
	if u.MediaPartners != nil {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventMediaPartner{}).Error; err != nil {
			return err
		}
		for i := range *u.MediaPartners {
			(*u.MediaPartners)[i].ID = 0
			(*u.MediaPartners)[i].EventID = id
		}
		if len(*u.MediaPartners) > 0 {
			if err := tx.Create(u.MediaPartners).Error; err != nil {
				return err
			}
		}
	}
	if u.Guests != nil {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventGuest{}).Error; err != nil {
			return err
		}
		for i := range *u.Guests {
			(*u.Guests)[i].ID = 0
			(*u.Guests)[i].EventID = id
		}
		if len(*u.Guests) > 0 {
			if err := tx.Create(u.Guests).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteEvent hard-deletes the event, its collections, and its attendees.
func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.Event
		err := tx.Where("id = ?", id).First(&e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.ErrEventNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Where("event_id = ?", id).Delete(&models.Attendee{}).Error; err != nil {
			return err
		}
		for _, m := range []any{
			&models.EventOrganizer{}, &models.EventSpeaker{}, &models.EventSponsor{},
			&models.EventMediaPartner{}, &models.EventGuest{},
		} {
			if err := tx.Where("event_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&e).Error
	})
}

// RegisterAttendee inserts a registration, enforcing one email per event.
func (s *Store) RegisterAttendee(ctx context.Context, a *models.Attendee) (*models.Attendee, error) {
	db := s.db.WithContext(ctx)

	var existing models.Attendee
	err := db.Where("event_id = ? AND email = ?", a.EventID, a.Email).First(&existing).Error
	if err == nil {
		return nil, store.ErrDuplicateRegistration
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	out := *a
	if out.Status == "" {
		out.Status = models.AttendeeRegistered
	}
	if out.QRCodeData == "" {
		out.QRCodeData = fmt.Sprintf("%s-%s-%d", a.Email, a.EventID, time.Now().UnixMilli())
	}
	if err := db.Create(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAttendeesByEvent returns non-cancelled attendees, newest first.
func (s *Store) GetAttendeesByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	var list []models.Attendee
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND status != ?", eventID, models.AttendeeCancelled).
		Order("registration_date DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateAttendeeStatus sets the status and its derived attended flag.
func (s *Store) UpdateAttendeeStatus(ctx context.Context, attendeeID uuid.UUID, p store.UpdateStatusParams) (*models.Attendee, error) {
	db := s.db.WithContext(ctx)

	var a models.Attendee
	err := db.Where("id = ?", attendeeID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrAttendeeNotFound
	}
	if err != nil {
		return nil, err
	}

	attended := p.Status == models.AttendeeAttended
	updates := map[string]any{
		"status":      string(p.Status),
		"attended":    attended,
		"check_in_by": p.ActorID,
	}
	if attended {
		updates["check_in_time"] = time.Now()
	}
	if err := db.Model(&a).Updates(updates).Error; err != nil {
		return nil, err
	}

	var out models.Attendee
	if err := db.Where("id = ?", attendeeID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchAttendees filters in process, matching name, email, and contact
// case-insensitively.
func (s *Store) SearchAttendees(ctx context.Context, eventID uuid.UUID, query string) ([]models.Attendee, error) {
	all, err := s.GetAttendeesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var out []models.Attendee
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.Name), needle) ||
			strings.Contains(strings.ToLower(a.Email), needle) ||
			strings.Contains(strings.ToLower(a.Contact), needle) {
			out = append(out, a)
		}
	}
	return out, nil
}

// GetEventAnalytics computes the summary from a fresh attendee scan.
func (s *Store) GetEventAnalytics(ctx context.Context, eventID uuid.UUID) (*models.EventAnalytics, error) {
	attendees, err := s.GetAttendeesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	a := models.EventAnalytics{TotalRegistered: len(attendees)}
	for _, at := range attendees {
		if at.Attended {
			a.TotalAttended++
		}
		if at.Status == models.AttendeeRegistered {
			a.PendingRegistrations++
		}
		if at.RegistrationDate.After(weekAgo) {
			a.RecentRegistrations++
		}
	}
	return &a, nil
}

// GetDashboardStats aggregates totals across events, optionally scoped to
// one owner.
func (s *Store) GetDashboardStats(ctx context.Context, ownerID *uuid.UUID) (*models.DashboardStats, error) {
	db := s.db.WithContext(ctx)

	q := db.Model(&models.Event{}).Where("status != ?", models.EventDeleted)
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	}
	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}

	st := models.DashboardStats{TotalEvents: len(events)}
	today := time.Now().Truncate(24 * time.Hour)
	for _, e := range events {
		attendees, err := s.GetAttendeesByEvent(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		st.TotalAttendees += len(attendees)
		for _, a := range attendees {
			if a.Attended {
				st.TotalAttended++
			}
		}
		if !e.StartDate.Before(today) {
			st.UpcomingEvents++
		}
	}
	return &st, nil
}
