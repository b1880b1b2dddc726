package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventStatus represents an event's lifecycle status. Deletion on the
// remote store is a status flip, never a row removal.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
	EventDeleted   EventStatus = "deleted"
)

// Event represents an event with its nested collections.
// MaxAttendees is nil for unlimited capacity.
type Event struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string      `gorm:"not null" json:"title"`
	Description      string      `json:"description"`
	StartDate        time.Time   `gorm:"not null;index" json:"start_date"`
	EndDate          time.Time   `gorm:"not null" json:"end_date"`
	StartTime        string      `json:"start_time,omitempty"`
	EndTime          string      `json:"end_time,omitempty"`
	Venue            string      `json:"venue"`
	Address          string      `json:"address"`
	MaxAttendees     *int        `json:"max_attendees,omitempty"`
	RegistrationFee  float64     `gorm:"default:0" json:"registration_fee"`
	Currency         string      `gorm:"default:'USD'" json:"currency"`
	// No gorm default here: a column default would silently coerce an
	// explicit false back to true on insert.
	IsPublic         bool        `gorm:"not null" json:"is_public"`
	RequiresApproval bool        `gorm:"not null;default:false" json:"requires_approval"`
	OwnerID          uuid.UUID   `gorm:"type:uuid;not null;index" json:"owner_id"`
	Status           EventStatus `gorm:"not null;default:'active'" json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`

	Organizers    []EventOrganizer    `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"organizers"`
	Speakers      []EventSpeaker      `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"speakers"`
	Sponsors      []EventSponsor      `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"sponsors"`
	MediaPartners []EventMediaPartner `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"media_partners"`
	Guests        []EventGuest        `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"guests_of_honour"`

	// Derived fields, never persisted.
	AttendeeCount int    `gorm:"-" json:"attendee_count"`
	OwnerEmail    string `gorm:"-" json:"owner_email,omitempty"`
}

// BeforeCreate assigns an ID when the local store inserts an event.
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// EventOrganizer is an organiser entry nested under an event.
type EventOrganizer struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID      uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	Name         string    `gorm:"not null" json:"name"`
	Detail       string    `json:"detail,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
}

// EventSpeaker is a speaker entry nested under an event.
type EventSpeaker struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID  uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	Name     string    `gorm:"not null" json:"name"`
	Title    string    `json:"title,omitempty"`
	Bio      string    `json:"bio,omitempty"`
	PhotoURL string    `json:"photo_url,omitempty"`
}

// EventSponsor is a sponsor entry nested under an event.
type EventSponsor struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	Name       string    `gorm:"not null" json:"name"`
	LogoURL    string    `json:"logo_url,omitempty"`
	WebsiteURL string    `json:"website_url,omitempty"`
	Level      string    `json:"level,omitempty"`
}

// EventMediaPartner is a media partner entry nested under an event.
type EventMediaPartner struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	Name       string    `gorm:"not null" json:"name"`
	LogoURL    string    `json:"logo_url,omitempty"`
	WebsiteURL string    `json:"website_url,omitempty"`
}

// EventGuest is a guest-of-honour entry nested under an event.
type EventGuest struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID  uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	Name     string    `gorm:"not null" json:"name"`
	Detail   string    `json:"detail,omitempty"`
	PhotoURL string    `json:"photo_url,omitempty"`
}

// EventUpdate holds a partial update; nil fields are left unchanged.
// Non-nil collection pointers replace the stored collection wholesale.
type EventUpdate struct {
	Title            *string
	Description      *string
	StartDate        *time.Time
	EndDate          *time.Time
	StartTime        *string
	EndTime          *string
	Venue            *string
	Address          *string
	MaxAttendees     *int
	RegistrationFee  *float64
	Currency         *string
	IsPublic         *bool
	RequiresApproval *bool
	Status           *EventStatus

	Organizers    *[]EventOrganizer
	Speakers      *[]EventSpeaker
	Sponsors      *[]EventSponsor
	MediaPartners *[]EventMediaPartner
	Guests        *[]EventGuest
}
