package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttendeeStatus represents an attendee's registration state. Cancelled
// attendees are excluded from every derived count.
type AttendeeStatus string

const (
	AttendeeRegistered AttendeeStatus = "registered"
	AttendeeConfirmed  AttendeeStatus = "confirmed"
	AttendeeCancelled  AttendeeStatus = "cancelled"
	AttendeeAttended   AttendeeStatus = "attended"
)

// Attendee represents a registration for one event. A given email
// registers once per event; re-registration is a conflict.
type Attendee struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventID             uuid.UUID      `gorm:"type:uuid;not null;index:idx_attendees_event_email,unique" json:"event_id"`
	UserID              *uuid.UUID     `gorm:"type:uuid" json:"user_id,omitempty"`
	Name                string         `gorm:"not null" json:"name"`
	Email               string         `gorm:"not null;index:idx_attendees_event_email,unique" json:"email"`
	Contact             string         `json:"contact"`
	Company             string         `json:"company,omitempty"`
	JobTitle            string         `json:"job_title,omitempty"`
	DietaryRequirements string         `json:"dietary_requirements,omitempty"`
	SpecialNeeds        string         `json:"special_needs,omitempty"`
	RegistrationDate    time.Time      `json:"registration_date"`
	Attended            bool           `gorm:"not null;default:false" json:"attended"`
	CheckInTime         *time.Time     `json:"check_in_time,omitempty"`
	CheckInBy           *uuid.UUID     `gorm:"type:uuid" json:"check_in_by,omitempty"`
	QRCodeData          string         `json:"qr_code_data,omitempty"`
	Status              AttendeeStatus `gorm:"not null;default:'registered'" json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// BeforeCreate assigns an ID and registration timestamp when the local
// store inserts an attendee.
func (a *Attendee) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.RegistrationDate.IsZero() {
		a.RegistrationDate = time.Now()
	}
	return nil
}
