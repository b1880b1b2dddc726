package models

// DashboardStats aggregates event and attendee totals, optionally scoped
// to one owner. Every figure is recomputed from the attendee rows on read.
type DashboardStats struct {
	TotalEvents    int `json:"total_events"`
	TotalAttendees int `json:"total_attendees"`
	TotalAttended  int `json:"total_attended"`
	UpcomingEvents int `json:"upcoming_events"`
}

// EventAnalytics summarizes one event's registrations.
type EventAnalytics struct {
	TotalRegistered      int `json:"total_registered"`
	TotalAttended        int `json:"total_attended"`
	PendingRegistrations int `json:"pending_registrations"`
	RecentRegistrations  int `json:"recent_registrations"`
}
