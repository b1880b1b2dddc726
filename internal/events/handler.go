package events

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eventsx/backend/internal/middleware"
	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/pkg/response"
)

// parseDate accepts RFC3339 timestamps and bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// CreateRequest is the body for POST /events. Anonymous submissions carry
// owner credentials; authenticated ones use the token identity.
type CreateRequest struct {
	Title            string  `json:"title" binding:"required"`
	Description      string  `json:"description"`
	StartDate        string  `json:"start_date" binding:"required"`
	EndDate          string  `json:"end_date" binding:"required"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	Venue            string  `json:"venue"`
	Address          string  `json:"address"`
	MaxAttendees     *int    `json:"max_attendees"`
	RegistrationFee  float64 `json:"registration_fee"`
	Currency         string  `json:"currency"`
	IsPublic         *bool   `json:"is_public"`
	RequiresApproval bool    `json:"requires_approval"`

	Organizers    []models.EventOrganizer    `json:"organizers"`
	Speakers      []models.EventSpeaker      `json:"speakers"`
	Sponsors      []models.EventSponsor      `json:"sponsors"`
	MediaPartners []models.EventMediaPartner `json:"media_partners"`
	Guests        []models.EventGuest        `json:"guests_of_honour"`

	OwnerEmail    string `json:"owner_email"`
	OwnerPassword string `json:"owner_password"`
}

// UpdateRequest is the body for PUT /events/:id. Nil fields are left
// unchanged; non-nil collections replace the stored ones wholesale.
type UpdateRequest struct {
	Title            *string  `json:"title"`
	Description      *string  `json:"description"`
	StartDate        *string  `json:"start_date"`
	EndDate          *string  `json:"end_date"`
	StartTime        *string  `json:"start_time"`
	EndTime          *string  `json:"end_time"`
	Venue            *string  `json:"venue"`
	Address          *string  `json:"address"`
	MaxAttendees     *int     `json:"max_attendees"`
	RegistrationFee  *float64 `json:"registration_fee"`
	Currency         *string  `json:"currency"`
	IsPublic         *bool    `json:"is_public"`
	RequiresApproval *bool    `json:"requires_approval"`
	Status           *string  `json:"status"`

	Organizers    *[]models.EventOrganizer    `json:"organizers"`
	Speakers      *[]models.EventSpeaker      `json:"speakers"`
	Sponsors      *[]models.EventSponsor      `json:"sponsors"`
	MediaPartners *[]models.EventMediaPartner `json:"media_partners"`
	Guests        *[]models.EventGuest        `json:"guests_of_honour"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an event handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid start_date")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		response.BadRequest(c, "invalid end_date")
		return
	}

	var ownerID uuid.UUID
	if idVal, ok := c.Get(middleware.ContextUserID); ok {
		ownerID = idVal.(uuid.UUID)
	} else {
		owner, err := h.svc.FindOrCreateOwner(c.Request.Context(), req.OwnerEmail, req.OwnerPassword)
		if err != nil {
			switch {
			case errors.Is(err, ErrValidation):
				response.BadRequest(c, err.Error())
			case errors.Is(err, ErrOwnerConflict):
				response.Conflict(c, response.CodeDuplicate, err.Error())
			default:
				response.Internal(c, "failed to resolve owner")
			}
			return
		}
		ownerID = owner.ID
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	event := &models.Event{
		Title:            req.Title,
		Description:      req.Description,
		StartDate:        startDate,
		EndDate:          endDate,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Venue:            req.Venue,
		Address:          req.Address,
		MaxAttendees:     req.MaxAttendees,
		RegistrationFee:  req.RegistrationFee,
		Currency:         currency,
		IsPublic:         isPublic,
		RequiresApproval: req.RequiresApproval,
		OwnerID:          ownerID,
		Organizers:       req.Organizers,
		Speakers:         req.Speakers,
		Sponsors:         req.Sponsors,
		MediaPartners:    req.MediaPartners,
		Guests:           req.Guests,
	}

	created, err := h.svc.Create(c.Request.Context(), event)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, created)
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	events, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, events)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, event)
}

// Update handles PUT /events/:id (owner or superadmin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	update := models.EventUpdate{
		Title:            req.Title,
		Description:      req.Description,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Venue:            req.Venue,
		Address:          req.Address,
		MaxAttendees:     req.MaxAttendees,
		RegistrationFee:  req.RegistrationFee,
		Currency:         req.Currency,
		IsPublic:         req.IsPublic,
		RequiresApproval: req.RequiresApproval,
		Organizers:       req.Organizers,
		Speakers:         req.Speakers,
		Sponsors:         req.Sponsors,
		MediaPartners:    req.MediaPartners,
		Guests:           req.Guests,
	}
	if req.StartDate != nil {
		t, err := parseDate(*req.StartDate)
		if err != nil {
			response.BadRequest(c, "invalid start_date")
			return
		}
		update.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseDate(*req.EndDate)
		if err != nil {
			response.BadRequest(c, "invalid end_date")
			return
		}
		update.EndDate = &t
	}
	if req.Status != nil {
		st := models.EventStatus(*req.Status)
		switch st {
		case models.EventDraft, models.EventActive, models.EventCancelled, models.EventCompleted:
			update.Status = &st
		default:
			response.BadRequest(c, "invalid status")
			return
		}
	}

	updated, err := h.svc.Update(c.Request.Context(), id, update, actorFrom(c))
	if err != nil {
		h.writeManageError(c, err, "failed to update event")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /events/:id (owner or superadmin).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		h.writeManageError(c, err, "failed to delete event")
		return
	}
	response.NoContent(c)
}

func (h *Handler) writeManageError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrEventNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, ErrPermissionDenied):
		response.Forbidden(c, "only the owner or a superadmin can manage this event")
	case errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
	default:
		response.Internal(c, fallback)
	}
}

func actorFrom(c *gin.Context) Actor {
	a := Actor{}
	if idVal, ok := c.Get(middleware.ContextUserID); ok {
		a.ID = idVal.(uuid.UUID)
	}
	if roleVal, ok := c.Get(middleware.ContextUserRole); ok {
		a.Role = models.Role(roleVal.(string))
	}
	return a
}
