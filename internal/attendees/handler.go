// Package attendees exposes registration, check-in and capacity endpoints.
package attendees

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/capacity"
	"github.com/eventsx/backend/internal/middleware"
	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/pkg/response"
)

// RegisterRequest is the body for POST /events/:id/attendees.
type RegisterRequest struct {
	Name                string `json:"name" binding:"required"`
	Email               string `json:"email" binding:"required,email"`
	Contact             string `json:"contact"`
	Company             string `json:"company"`
	JobTitle            string `json:"job_title"`
	DietaryRequirements string `json:"dietary_requirements"`
	SpecialNeeds        string `json:"special_needs"`
}

// CapacityRequest is the body for POST /events/:id/capacity.
type CapacityRequest struct {
	MaxAttendees int `json:"max_attendees" binding:"required"`
}

// Handler handles attendee HTTP endpoints.
type Handler struct {
	engine *capacity.Engine
	store  store.Store
	logger *zap.Logger
}

// NewHandler creates an attendee handler.
func NewHandler(engine *capacity.Engine, st store.Store, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, store: st, logger: logger}
}

// Register handles POST /events/:id/attendees (public). Registration is
// never blocked by capacity; a response past capacity carries
// capacity_exceeded=true.
func (h *Handler) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.engine.Register(c.Request.Context(), &models.Attendee{
		EventID:             eventID,
		Name:                req.Name,
		Email:               req.Email,
		Contact:             req.Contact,
		Company:             req.Company,
		JobTitle:            req.JobTitle,
		DietaryRequirements: req.DietaryRequirements,
		SpecialNeeds:        req.SpecialNeeds,
	})
	if err != nil {
		switch {
		case errors.Is(err, capacity.ErrValidation):
			response.BadRequest(c, err.Error())
		case errors.Is(err, store.ErrEventNotFound):
			response.NotFound(c, "event not found")
		case errors.Is(err, store.ErrDuplicateRegistration):
			response.Conflict(c, response.CodeDuplicate, "this email is already registered for the event")
		default:
			h.logger.Error("attendee registration failed", zap.Error(err))
			response.Internal(c, "failed to register attendee")
		}
		return
	}
	response.Created(c, result)
}

// List handles GET /events/:id/attendees.
func (h *Handler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.store.GetAttendeesByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to list attendees")
		return
	}
	response.OK(c, list)
}

// Search handles GET /events/:id/attendees/search?q=...
func (h *Handler) Search(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	q := c.Query("q")
	if q == "" {
		response.BadRequest(c, "missing query parameter q")
		return
	}
	list, err := h.store.SearchAttendees(c.Request.Context(), eventID, q)
	if err != nil {
		response.Internal(c, "search failed")
		return
	}
	response.OK(c, list)
}

// CheckIn handles POST /events/:id/attendees/:attendeeID/checkin
// (superadmin only).
func (h *Handler) CheckIn(c *gin.Context) {
	eventID, attendeeID, ok := pathIDs(c)
	if !ok {
		return
	}
	attendee, err := h.engine.CheckIn(c.Request.Context(), eventID, attendeeID, actorFrom(c))
	if err != nil {
		h.writeEngineError(c, err, "check-in failed")
		return
	}
	response.OK(c, attendee)
}

// Revert handles DELETE /events/:id/attendees/:attendeeID/checkin
// (superadmin only), flipping an attended attendee back to registered.
func (h *Handler) Revert(c *gin.Context) {
	_, attendeeID, ok := pathIDs(c)
	if !ok {
		return
	}
	attendee, err := h.engine.Revert(c.Request.Context(), attendeeID, actorFrom(c))
	if err != nil {
		h.writeEngineError(c, err, "revert failed")
		return
	}
	response.OK(c, attendee)
}

// IncreaseCapacity handles POST /events/:id/capacity (superadmin only).
func (h *Handler) IncreaseCapacity(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req CapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	event, err := h.engine.IncreaseCapacity(c.Request.Context(), eventID, req.MaxAttendees, actorFrom(c))
	if err != nil {
		h.writeEngineError(c, err, "capacity update failed")
		return
	}
	response.OK(c, event)
}

func (h *Handler) writeEngineError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, capacity.ErrPermissionDenied):
		response.Forbidden(c, "superadmin role required")
	case errors.Is(err, capacity.ErrCapacityReached):
		response.UnprocessableWithCode(c, response.CodeCapacityReached, "event capacity reached")
	case errors.Is(err, capacity.ErrOutsideWindow):
		response.UnprocessableWithCode(c, response.CodeOutsideWindow, "check-in is only available during the event dates")
	case errors.Is(err, capacity.ErrInvalidCapacity):
		response.UnprocessableWithCode(c, response.CodeInvalidCapacity, "capacity must be a positive value greater than the current capacity")
	case errors.Is(err, store.ErrEventNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, store.ErrAttendeeNotFound):
		response.NotFound(c, "attendee not found")
	default:
		h.logger.Error(fallback, zap.Error(err))
		response.Internal(c, fallback)
	}
}

func pathIDs(c *gin.Context) (eventID, attendeeID uuid.UUID, ok bool) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, uuid.Nil, false
	}
	attendeeID, err = uuid.Parse(c.Param("attendeeID"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return uuid.Nil, uuid.Nil, false
	}
	return eventID, attendeeID, true
}

func actorFrom(c *gin.Context) capacity.Actor {
	a := capacity.Actor{}
	if idVal, ok := c.Get(middleware.ContextUserID); ok {
		a.ID = idVal.(uuid.UUID)
	}
	if roleVal, ok := c.Get(middleware.ContextUserRole); ok {
		a.Role = models.Role(roleVal.(string))
	}
	return a
}
