package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
)

const attendeeColumns = `id, event_id, user_id, name, email,
	COALESCE(contact,''), COALESCE(company,''), COALESCE(job_title,''),
	COALESCE(dietary_requirements,''), COALESCE(special_needs,''),
	registration_date, attended, check_in_time, check_in_by,
	COALESCE(qr_code_data,''), status, created_at, updated_at`

func scanAttendee(row interface{ Scan(...any) error }) (*models.Attendee, error) {
	var a models.Attendee
	err := row.Scan(&a.ID, &a.EventID, &a.UserID, &a.Name, &a.Email,
		&a.Contact, &a.Company, &a.JobTitle,
		&a.DietaryRequirements, &a.SpecialNeeds,
		&a.RegistrationDate, &a.Attended, &a.CheckInTime, &a.CheckInBy,
		&a.QRCodeData, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RegisterAttendee inserts a registration; the (event, email) unique
// constraint turns a repeat into ErrDuplicateRegistration.
func (s *Store) RegisterAttendee(ctx context.Context, a *models.Attendee) (*models.Attendee, error) {
	const q = `INSERT INTO attendees (event_id, user_id, name, email, contact, company, job_title,
		dietary_requirements, special_needs, qr_code_data)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), $10)
		RETURNING ` + attendeeColumns

	qrData := a.QRCodeData
	if qrData == "" {
		qrData = fmt.Sprintf("%s-%s-%d", a.Email, a.EventID, time.Now().UnixMilli())
	}

	var created *models.Attendee
	err := s.withRetry(ctx, "register attendee", func() error {
		var scanErr error
		created, scanErr = scanAttendee(s.pool.QueryRow(ctx, q,
			a.EventID, a.UserID, a.Name, a.Email, a.Contact, a.Company, a.JobTitle,
			a.DietaryRequirements, a.SpecialNeeds, qrData))
		if scanErr != nil && isUniqueViolation(scanErr) {
			return store.ErrDuplicateRegistration
		}
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetAttendeesByEvent returns non-cancelled attendees, newest first.
func (s *Store) GetAttendeesByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	const q = `SELECT ` + attendeeColumns + ` FROM attendees
		WHERE event_id = $1 AND status != 'cancelled'
		ORDER BY registration_date DESC`

	var list []models.Attendee
	err := s.withRetry(ctx, "get attendees by event", func() error {
		rows, qErr := s.pool.Query(ctx, q, eventID)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		list = list[:0]
		for rows.Next() {
			a, scanErr := scanAttendee(rows)
			if scanErr != nil {
				return scanErr
			}
			list = append(list, *a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateAttendeeStatus sets the status and its derived attended flag.
// Check-in time is stamped when attended flips true and preserved on a
// revert; the acting user is recorded either way.
func (s *Store) UpdateAttendeeStatus(ctx context.Context, attendeeID uuid.UUID, p store.UpdateStatusParams) (*models.Attendee, error) {
	const q = `UPDATE attendees
		SET status = $1,
		    attended = $2,
		    check_in_time = CASE WHEN $2 = true THEN NOW() ELSE check_in_time END,
		    check_in_by = $3,
		    updated_at = NOW()
		WHERE id = $4
		RETURNING ` + attendeeColumns

	attended := p.Status == models.AttendeeAttended

	var updated *models.Attendee
	err := s.withRetry(ctx, "update attendee status", func() error {
		var scanErr error
		updated, scanErr = scanAttendee(s.pool.QueryRow(ctx, q, string(p.Status), attended, p.ActorID, attendeeID))
		if scanErr != nil && noRows(scanErr) {
			return store.ErrAttendeeNotFound
		}
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SearchAttendees matches name, email, and contact case-insensitively and
// the QR code exactly (kiosk lookup).
func (s *Store) SearchAttendees(ctx context.Context, eventID uuid.UUID, query string) ([]models.Attendee, error) {
	const q = `SELECT ` + attendeeColumns + ` FROM attendees
		WHERE event_id = $1
		  AND status != 'cancelled'
		  AND (name ILIKE $2 OR email ILIKE $2 OR contact ILIKE $2 OR qr_code_data = $3)
		ORDER BY name ASC`

	pattern := "%" + query + "%"

	var list []models.Attendee
	err := s.withRetry(ctx, "search attendees", func() error {
		rows, qErr := s.pool.Query(ctx, q, eventID, pattern, query)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		list = list[:0]
		for rows.Next() {
			a, scanErr := scanAttendee(rows)
			if scanErr != nil {
				return scanErr
			}
			list = append(list, *a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
