// Package storetest provides an in-memory Store implementation for tests.
// It mirrors the backend stores' semantics closely enough to exercise the
// adapter and the capacity rules without a database.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/pkg/utils"
)

// Mem is a mutex-guarded in-memory Store. The zero value is not usable;
// call New.
//
// Err, when set, is returned by every operation, which lets adapter tests
// simulate a failing backend. HealthErr fails only the health probe.
type Mem struct {
	mu sync.Mutex

	Err       error
	HealthErr error

	users     map[uuid.UUID]*models.User
	events    map[uuid.UUID]*models.Event
	attendees map[uuid.UUID]*models.Attendee
}

// New creates an empty in-memory store.
func New() *Mem {
	return &Mem{
		users:     make(map[uuid.UUID]*models.User),
		events:    make(map[uuid.UUID]*models.Event),
		attendees: make(map[uuid.UUID]*models.Attendee),
	}
}

func (m *Mem) RegisterUser(ctx context.Context, p store.RegisterUserParams) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, p.Email) {
			return nil, store.ErrDuplicateEmail
		}
	}
	hash, err := utils.HashPassword(p.Password)
	if err != nil {
		return nil, err
	}
	role := p.Role
	if role == "" {
		role = models.RoleUser
	}
	u := &models.User{
		ID:           uuid.New(),
		Email:        p.Email,
		PasswordHash: hash,
		Role:         role,
		Contact:      p.Contact,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	out := *u
	return &out, nil
}

func (m *Mem) ImportUser(ctx context.Context, u models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, store.ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	m.users[u.ID] = &u
	out := u
	return &out, nil
}

func (m *Mem) LoginUser(ctx context.Context, email, password string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u := m.findUserLocked(email)
	if u == nil {
		return nil, store.ErrUserNotFound
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, store.ErrBadCredential
	}
	now := time.Now()
	u.LastLogin = &now
	out := *u
	return &out, nil
}

func (m *Mem) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u := m.findUserLocked(email)
	if u == nil {
		return nil, store.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m *Mem) GetAllUsers(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *Mem) findUserLocked(email string) *models.User {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) && u.IsActive {
			return u
		}
	}
	return nil
}

func (m *Mem) AddEvent(ctx context.Context, e *models.Event) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	cp := *e
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.Status == "" {
		cp.Status = models.EventActive
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.events[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *Mem) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.events[id]
	if !ok || e.Status == models.EventDeleted {
		return nil, store.ErrEventNotFound
	}
	out := *e
	m.fillDerivedLocked(&out)
	return &out, nil
}

func (m *Mem) GetAllEvents(ctx context.Context) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		if e.Status == models.EventDeleted || !e.IsPublic {
			continue
		}
		cp := *e
		m.fillDerivedLocked(&cp)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Mem) DumpEvents(ctx context.Context) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		if e.Status == models.EventDeleted {
			continue
		}
		cp := *e
		m.fillDerivedLocked(&cp)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Mem) UpdateEvent(ctx context.Context, id uuid.UUID, u models.EventUpdate) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.events[id]
	if !ok || e.Status == models.EventDeleted {
		return nil, store.ErrEventNotFound
	}
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.StartDate != nil {
		e.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		e.EndDate = *u.EndDate
	}
	if u.StartTime != nil {
		e.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		e.EndTime = *u.EndTime
	}
	if u.Venue != nil {
		e.Venue = *u.Venue
	}
	if u.Address != nil {
		e.Address = *u.Address
	}
	if u.MaxAttendees != nil {
		v := *u.MaxAttendees
		e.MaxAttendees = &v
	}
	if u.RegistrationFee != nil {
		e.RegistrationFee = *u.RegistrationFee
	}
	if u.Currency != nil {
		e.Currency = *u.Currency
	}
	if u.IsPublic != nil {
		e.IsPublic = *u.IsPublic
	}
	if u.RequiresApproval != nil {
		e.RequiresApproval = *u.RequiresApproval
	}
	if u.Status != nil {
		e.Status = *u.Status
	}
	if u.Organizers != nil {
		e.Organizers = *u.Organizers
	}
	if u.Speakers != nil {
		e.Speakers = *u.Speakers
	}
	if u.Sponsors != nil {
		e.Sponsors = *u.Sponsors
	}
	if u.MediaPartners != nil {
		e.MediaPartners = *u.MediaPartners
	}
	if u.Guests != nil {
		e.Guests = *u.Guests
	}
	e.UpdatedAt = time.Now()
	out := *e
	m.fillDerivedLocked(&out)
	return &out, nil
}

func (m *Mem) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	e, ok := m.events[id]
	if !ok || e.Status == models.EventDeleted {
		return store.ErrEventNotFound
	}
	e.Status = models.EventDeleted
	return nil
}

func (m *Mem) fillDerivedLocked(e *models.Event) {
	count := 0
	for _, a := range m.attendees {
		if a.EventID == e.ID && a.Status != models.AttendeeCancelled {
			count++
		}
	}
	e.AttendeeCount = count
	if owner, ok := m.users[e.OwnerID]; ok {
		e.OwnerEmail = owner.Email
	}
}

func (m *Mem) RegisterAttendee(ctx context.Context, a *models.Attendee) (*models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, existing := range m.attendees {
		if existing.EventID == a.EventID && strings.EqualFold(existing.Email, a.Email) {
			return nil, store.ErrDuplicateRegistration
		}
	}
	cp := *a
	cp.ID = uuid.New()
	if cp.Status == "" {
		cp.Status = models.AttendeeRegistered
	}
	if cp.RegistrationDate.IsZero() {
		cp.RegistrationDate = time.Now()
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.attendees[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *Mem) GetAttendeesByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.Attendee, 0)
	for _, a := range m.attendees {
		if a.EventID == eventID && a.Status != models.AttendeeCancelled {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegistrationDate.After(out[j].RegistrationDate)
	})
	return out, nil
}

func (m *Mem) UpdateAttendeeStatus(ctx context.Context, attendeeID uuid.UUID, p store.UpdateStatusParams) (*models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	a, ok := m.attendees[attendeeID]
	if !ok {
		return nil, store.ErrAttendeeNotFound
	}
	a.Status = p.Status
	a.Attended = p.Status == models.AttendeeAttended
	if a.Attended {
		now := time.Now()
		a.CheckInTime = &now
	}
	a.CheckInBy = p.ActorID
	a.UpdatedAt = time.Now()
	out := *a
	return &out, nil
}

func (m *Mem) SearchAttendees(ctx context.Context, eventID uuid.UUID, query string) ([]models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Attendee, 0)
	for _, a := range m.attendees {
		if a.EventID != eventID {
			continue
		}
		if strings.Contains(strings.ToLower(a.Name), q) ||
			strings.Contains(strings.ToLower(a.Email), q) ||
			strings.Contains(strings.ToLower(a.Contact), q) ||
			a.QRCodeData == query {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *Mem) GetEventAnalytics(ctx context.Context, eventID uuid.UUID) (*models.EventAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.events[eventID]; !ok {
		return nil, store.ErrEventNotFound
	}
	out := &models.EventAnalytics{}
	cutoff := time.Now().AddDate(0, 0, -7)
	for _, a := range m.attendees {
		if a.EventID != eventID || a.Status == models.AttendeeCancelled {
			continue
		}
		out.TotalRegistered++
		if a.Attended {
			out.TotalAttended++
		} else {
			out.PendingRegistrations++
		}
		if a.RegistrationDate.After(cutoff) {
			out.RecentRegistrations++
		}
	}
	return out, nil
}

func (m *Mem) GetDashboardStats(ctx context.Context, ownerID *uuid.UUID) (*models.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := &models.DashboardStats{}
	today := time.Now().Truncate(24 * time.Hour)
	for _, e := range m.events {
		if e.Status == models.EventDeleted {
			continue
		}
		if ownerID != nil && e.OwnerID != *ownerID {
			continue
		}
		out.TotalEvents++
		if !e.StartDate.Before(today) {
			out.UpcomingEvents++
		}
		for _, a := range m.attendees {
			if a.EventID != e.ID || a.Status == models.AttendeeCancelled {
				continue
			}
			out.TotalAttendees++
			if a.Attended {
				out.TotalAttended++
			}
		}
	}
	return out, nil
}

func (m *Mem) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HealthErr != nil {
		return m.HealthErr
	}
	return m.Err
}
