package remote

import (
	"context"

	"github.com/google/uuid"

	"github.com/eventsx/backend/internal/models"
)

// GetEventAnalytics summarizes one event's registrations from a fresh scan.
func (s *Store) GetEventAnalytics(ctx context.Context, eventID uuid.UUID) (*models.EventAnalytics, error) {
	const q = `SELECT
			COUNT(*),
			COUNT(CASE WHEN attended = true THEN 1 END),
			COUNT(CASE WHEN status = 'registered' THEN 1 END),
			COUNT(CASE WHEN registration_date >= NOW() - INTERVAL '7 days' THEN 1 END)
		FROM attendees
		WHERE event_id = $1 AND status != 'cancelled'`

	var a models.EventAnalytics
	err := s.withRetry(ctx, "get event analytics", func() error {
		return s.pool.QueryRow(ctx, q, eventID).
			Scan(&a.TotalRegistered, &a.TotalAttended, &a.PendingRegistrations, &a.RecentRegistrations)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDashboardStats aggregates totals across events, optionally scoped to
// one owner.
func (s *Store) GetDashboardStats(ctx context.Context, ownerID *uuid.UUID) (*models.DashboardStats, error) {
	q := `SELECT
			COUNT(DISTINCT e.id),
			COUNT(DISTINCT a.id),
			COUNT(DISTINCT CASE WHEN a.attended = true THEN a.id END),
			COUNT(DISTINCT CASE WHEN e.start_date >= CURRENT_DATE THEN e.id END)
		FROM events e
		LEFT JOIN attendees a ON e.id = a.event_id AND a.status != 'cancelled'
		WHERE e.status != 'deleted'`
	args := []any{}
	if ownerID != nil {
		q += ` AND e.owner_id = $1`
		args = append(args, *ownerID)
	}

	var st models.DashboardStats
	err := s.withRetry(ctx, "get dashboard stats", func() error {
		return s.pool.QueryRow(ctx, q, args...).
			Scan(&st.TotalEvents, &st.TotalAttendees, &st.TotalAttended, &st.UpcomingEvents)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}
