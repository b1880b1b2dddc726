package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
)

const eventColumns = `e.id, e.title, COALESCE(e.description,''),
	e.start_date, e.end_date, COALESCE(e.start_time::text,''), COALESCE(e.end_time::text,''),
	COALESCE(e.venue,''), COALESCE(e.address,''), e.max_attendees,
	e.registration_fee, e.currency, e.is_public, e.requires_approval,
	e.owner_id, e.status, e.created_at, e.updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description,
		&e.StartDate, &e.EndDate, &e.StartTime, &e.EndTime,
		&e.Venue, &e.Address, &e.MaxAttendees,
		&e.RegistrationFee, &e.Currency, &e.IsPublic, &e.RequiresApproval,
		&e.OwnerID, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AddEvent inserts an event and its nested collections in one transaction.
func (s *Store) AddEvent(ctx context.Context, e *models.Event) (*models.Event, error) {
	const q = `INSERT INTO events (title, description, start_date, end_date, start_time, end_time,
		venue, address, max_attendees, registration_fee, currency, is_public, requires_approval, owner_id, status)
		VALUES ($1, NULLIF($2,''), $3, $4, NULLIF($5,'')::time, NULLIF($6,'')::time,
		NULLIF($7,''), NULLIF($8,''), $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	status := e.Status
	if status == "" {
		status = models.EventActive
	}
	currency := e.Currency
	if currency == "" {
		currency = "USD"
	}

	var created *models.Event
	err := s.withRetry(ctx, "add event", func() error {
		tx, txErr := s.pool.Begin(ctx)
		if txErr != nil {
			return txErr
		}
		defer tx.Rollback(ctx)

		out := *e
		out.Status = status
		out.Currency = currency
		if scanErr := tx.QueryRow(ctx, q,
			e.Title, e.Description, e.StartDate, e.EndDate, e.StartTime, e.EndTime,
			e.Venue, e.Address, e.MaxAttendees, e.RegistrationFee, currency,
			e.IsPublic, e.RequiresApproval, e.OwnerID, string(status),
		).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt); scanErr != nil {
			return scanErr
		}
		if insErr := insertCollections(ctx, tx, out.ID, &out); insErr != nil {
			return insErr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return commitErr
		}
		created = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertCollections(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, e *models.Event) error {
	for i := range e.Organizers {
		o := &e.Organizers[i]
		o.EventID = eventID
		err := tx.QueryRow(ctx, `INSERT INTO event_organizers (event_id, name, detail, contact_email, contact_phone)
			VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,'')) RETURNING id`,
			eventID, o.Name, o.Detail, o.ContactEmail, o.ContactPhone).Scan(&o.ID)
		if err != nil {
			return err
		}
	}
	for i := range e.Speakers {
		sp := &e.Speakers[i]
		sp.EventID = eventID
		err := tx.QueryRow(ctx, `INSERT INTO event_speakers (event_id, name, title, bio, photo_url)
			VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,'')) RETURNING id`,
			eventID, sp.Name, sp.Title, sp.Bio, sp.PhotoURL).Scan(&sp.ID)
		if err != nil {
			return err
		}
	}
	for i := range e.Sponsors {
		sp := &e.Sponsors[i]
		sp.EventID = eventID
		err := tx.QueryRow(ctx, `INSERT INTO event_sponsors (event_id, name, logo_url, website_url, level)
			VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,'')) RETURNING id`,
			eventID, sp.Name, sp.LogoURL, sp.WebsiteURL, sp.Level).Scan(&sp.ID)
		if err != nil {
			return err
		}
	}
	for i := range e.MediaPartners {
		mp := &e.MediaPartners[i]
		mp.EventID = eventID
		err := tx.QueryRow(ctx, `INSERT INTO event_media_partners (event_id, name, logo_url, website_url)
			VALUES ($1, $2, NULLIF($3,''), NULLIF($4,'')) RETURNING id`,
			eventID, mp.Name, mp.LogoURL, mp.WebsiteURL).Scan(&mp.ID)
		if err != nil {
			return err
		}
	}
	for i := range e.Guests {
		g := &e.Guests[i]
		g.EventID = eventID
		err := tx.QueryRow(ctx, `INSERT INTO event_guests (event_id, name, detail, photo_url)
			VALUES ($1, $2, NULLIF($3,''), NULLIF($4,'')) RETURNING id`,
			eventID, g.Name, g.Detail, g.PhotoURL).Scan(&g.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetEvent returns an event with its collections, owner email, and a fresh
// non-cancelled attendee count. Soft-deleted events are invisible.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + `, u.email,
		(SELECT COUNT(*) FROM attendees a WHERE a.event_id = e.id AND a.status != 'cancelled')
		FROM events e JOIN users u ON e.owner_id = u.id
		WHERE e.id = $1 AND e.status != 'deleted'`

	var ev *models.Event
	err := s.withRetry(ctx, "get event", func() error {
		var e models.Event
		scanErr := s.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.Title, &e.Description,
			&e.StartDate, &e.EndDate, &e.StartTime, &e.EndTime,
			&e.Venue, &e.Address, &e.MaxAttendees,
			&e.RegistrationFee, &e.Currency, &e.IsPublic, &e.RequiresApproval,
			&e.OwnerID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
			&e.OwnerEmail, &e.AttendeeCount)
		if scanErr != nil {
			if noRows(scanErr) {
				return store.ErrEventNotFound
			}
			return scanErr
		}
		if collErr := s.loadCollections(ctx, &e); collErr != nil {
			return collErr
		}
		ev = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Store) loadCollections(ctx context.Context, e *models.Event) error {
	e.Organizers = []models.EventOrganizer{}
	rows, err := s.pool.Query(ctx, `SELECT id, event_id, name, COALESCE(detail,''), COALESCE(contact_email,''), COALESCE(contact_phone,'')
		FROM event_organizers WHERE event_id = $1 ORDER BY id`, e.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var o models.EventOrganizer
		if err := rows.Scan(&o.ID, &o.EventID, &o.Name, &o.Detail, &o.ContactEmail, &o.ContactPhone); err != nil {
			rows.Close()
			return err
		}
		e.Organizers = append(e.Organizers, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	e.Speakers = []models.EventSpeaker{}
	rows, err = s.pool.Query(ctx, `SELECT id, event_id, name, COALESCE(title,''), COALESCE(bio,''), COALESCE(photo_url,'')
		FROM event_speakers WHERE event_id = $1 ORDER BY id`, e.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var sp models.EventSpeaker
		if err := rows.Scan(&sp.ID, &sp.EventID, &sp.Name, &sp.Title, &sp.Bio, &sp.PhotoURL); err != nil {
			rows.Close()
			return err
		}
		e.Speakers = append(e.Speakers, sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	e.Sponsors = []models.EventSponsor{}
	rows, err = s.pool.Query(ctx, `SELECT id, event_id, name, COALESCE(logo_url,''), COALESCE(website_url,''), COALESCE(level,'')
		FROM event_sponsors WHERE event_id = $1 ORDER BY id`, e.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var sp models.EventSponsor
		if err := rows.Scan(&sp.ID, &sp.EventID, &sp.Name, &sp.LogoURL, &sp.WebsiteURL, &sp.Level); err != nil {
			rows.Close()
			return err
		}
		e.Sponsors = append(e.Sponsors, sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	e.MediaPartners = []models.EventMediaPartner{}
	rows, err = s.pool.Query(ctx, `SELECT id, event_id, name, COALESCE(logo_url,''), COALESCE(website_url,'')
		FROM event_media_partners WHERE event_id = $1 ORDER BY id`, e.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var mp models.EventMediaPartner
		if err := rows.Scan(&mp.ID, &mp.EventID, &mp.Name, &mp.LogoURL, &mp.WebsiteURL); err != nil {
			rows.Close()
			return err
		}
		e.MediaPartners = append(e.MediaPartners, mp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	e.Guests = []models.EventGuest{}
	rows, err = s.pool.Query(ctx, `SELECT id, event_id, name, COALESCE(detail,''), COALESCE(photo_url,'')
		FROM event_guests WHERE event_id = $1 ORDER BY id`, e.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var g models.EventGuest
		if err := rows.Scan(&g.ID, &g.EventID, &g.Name, &g.Detail, &g.PhotoURL); err != nil {
			rows.Close()
			return err
		}
		e.Guests = append(e.Guests, g)
	}
	rows.Close()
	return rows.Err()
}

// GetAllEvents returns public, non-deleted events with owner email and a
// derived non-cancelled attendee count, soonest first.
func (s *Store) GetAllEvents(ctx context.Context) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + `, u.email, COUNT(a.id)
		FROM events e
		JOIN users u ON e.owner_id = u.id
		LEFT JOIN attendees a ON e.id = a.event_id AND a.status != 'cancelled'
		WHERE e.status != 'deleted' AND e.is_public = true
		GROUP BY e.id, u.email
		ORDER BY e.start_date ASC`

	var list []models.Event
	err := s.withRetry(ctx, "get all events", func() error {
		rows, qErr := s.pool.Query(ctx, q)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		list = list[:0]
		for rows.Next() {
			var e models.Event
			if scanErr := rows.Scan(&e.ID, &e.Title, &e.Description,
				&e.StartDate, &e.EndDate, &e.StartTime, &e.EndTime,
				&e.Venue, &e.Address, &e.MaxAttendees,
				&e.RegistrationFee, &e.Currency, &e.IsPublic, &e.RequiresApproval,
				&e.OwnerID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
				&e.OwnerEmail, &e.AttendeeCount); scanErr != nil {
				return scanErr
			}
			list = append(list, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DumpEvents returns every non-deleted event regardless of visibility,
// with owner email and attendee count. Migration indexes the remote side
// through this to recognize rows it already copied.
func (s *Store) DumpEvents(ctx context.Context) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + `, u.email, COUNT(a.id)
		FROM events e
		JOIN users u ON e.owner_id = u.id
		LEFT JOIN attendees a ON e.id = a.event_id AND a.status != 'cancelled'
		WHERE e.status != 'deleted'
		GROUP BY e.id, u.email
		ORDER BY e.created_at ASC`

	var list []models.Event
	err := s.withRetry(ctx, "dump events", func() error {
		rows, qErr := s.pool.Query(ctx, q)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		list = list[:0]
		for rows.Next() {
			var e models.Event
			if scanErr := rows.Scan(&e.ID, &e.Title, &e.Description,
				&e.StartDate, &e.EndDate, &e.StartTime, &e.EndTime,
				&e.Venue, &e.Address, &e.MaxAttendees,
				&e.RegistrationFee, &e.Currency, &e.IsPublic, &e.RequiresApproval,
				&e.OwnerID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
				&e.OwnerEmail, &e.AttendeeCount); scanErr != nil {
				return scanErr
			}
			list = append(list, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateEvent applies a partial update inside one transaction. Non-nil
// collection pointers replace the stored collection wholesale.
func (s *Store) UpdateEvent(ctx context.Context, id uuid.UUID, u models.EventUpdate) (*models.Event, error) {
	sets, args := buildEventSets(u)

	var updated *models.Event
	err := s.withRetry(ctx, "update event", func() error {
		tx, txErr := s.pool.Begin(ctx)
		if txErr != nil {
			return txErr
		}
		defer tx.Rollback(ctx)

		if len(sets) > 0 {
			q := fmt.Sprintf(`UPDATE events SET %s, updated_at = NOW() WHERE id = $%d AND status != 'deleted'`,
				strings.Join(sets, ", "), len(args)+1)
			tag, execErr := tx.Exec(ctx, q, append(args, id)...)
			if execErr != nil {
				return execErr
			}
			if tag.RowsAffected() == 0 {
				return store.ErrEventNotFound
			}
		}
		if repErr := replaceCollections(ctx, tx, id, u); repErr != nil {
			return repErr
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	updated, err = s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func buildEventSets(u models.EventUpdate) (sets []string, args []any) {
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.StartDate != nil {
		add("start_date", *u.StartDate)
	}
	if u.EndDate != nil {
		add("end_date", *u.EndDate)
	}
	if u.StartTime != nil {
		args = append(args, *u.StartTime)
		sets = append(sets, fmt.Sprintf("start_time = NULLIF($%d,'')::time", len(args)))
	}
	if u.EndTime != nil {
		args = append(args, *u.EndTime)
		sets = append(sets, fmt.Sprintf("end_time = NULLIF($%d,'')::time", len(args)))
	}
	if u.Venue != nil {
		add("venue", *u.Venue)
	}
	if u.Address != nil {
		add("address", *u.Address)
	}
	if u.MaxAttendees != nil {
		add("max_attendees", *u.MaxAttendees)
	}
	if u.RegistrationFee != nil {
		add("registration_fee", *u.RegistrationFee)
	}
	if u.Currency != nil {
		add("currency", *u.Currency)
	}
	if u.IsPublic != nil {
		add("is_public", *u.IsPublic)
	}
	if u.RequiresApproval != nil {
		add("requires_approval", *u.RequiresApproval)
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	return sets, args
}

func replaceCollections(ctx context.Context, tx pgx.Tx, id uuid.UUID, u models.EventUpdate) error {
	replacement := models.Event{}
	touched := false
	if u.Organizers != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM event_organizers WHERE event_id = $1`, id); err != nil {
			return err
		}
		replacement.Organizers = *u.Organizers
		touched = true
	}
	if u.Speakers != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM event_speakers WHERE event_id = $1`, id); err != nil {
			return err
		}
		replacement.Speakers = *u.Speakers
		touched = true
	}
	if u.Sponsors != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM event_sponsors WHERE event_id = $1`, id); err != nil {
			return err
		}
		replacement.Sponsors = *u.Sponsors
		touched = true
	}
	if u.MediaPartners != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM event_media_partners WHERE event_id = $1`, id); err != nil {
			return err
		}
		replacement.MediaPartners = *u.MediaPartners
		touched = true
	}
	if u.Guests != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM event_guests WHERE event_id = $1`, id); err != nil {
			return err
		}
		replacement.Guests = *u.Guests
		touched = true
	}
	if !touched {
		return nil
	}
	return insertCollections(ctx, tx, id, &replacement)
}

// DeleteEvent soft-deletes by status flip; attendee rows stay in place.
func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE events SET status = 'deleted', updated_at = NOW() WHERE id = $1 AND status != 'deleted'`
	return s.withRetry(ctx, "delete event", func() error {
		tag, err := s.pool.Exec(ctx, q, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrEventNotFound
		}
		return nil
	})
}
