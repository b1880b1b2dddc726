// Package analytics exposes the dashboard/event aggregates and the
// database administration endpoints.
package analytics

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/middleware"
	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/pkg/response"
)

// SwitchRequest is the body for POST /admin/database/switch.
type SwitchRequest struct {
	Target string `json:"target" binding:"required,oneof=remote local"`
}

// Handler handles analytics and database administration endpoints.
type Handler struct {
	adapter *store.Adapter
	logger  *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(adapter *store.Adapter, logger *zap.Logger) *Handler {
	return &Handler{adapter: adapter, logger: logger}
}

// Dashboard handles GET /dashboard/stats. Superadmins see platform-wide
// figures; owners see their own events only.
func (h *Handler) Dashboard(c *gin.Context) {
	var ownerID *uuid.UUID
	if roleVal, ok := c.Get(middleware.ContextUserRole); ok {
		if models.Role(roleVal.(string)) != models.RoleSuperadmin {
			if idVal, ok := c.Get(middleware.ContextUserID); ok {
				id := idVal.(uuid.UUID)
				ownerID = &id
			}
		}
	}
	stats, err := h.adapter.GetDashboardStats(c.Request.Context(), ownerID)
	if err != nil {
		response.Internal(c, "failed to load dashboard stats")
		return
	}
	response.OK(c, stats)
}

// EventAnalytics handles GET /events/:id/analytics.
func (h *Handler) EventAnalytics(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	analytics, err := h.adapter.GetEventAnalytics(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event analytics")
		return
	}
	response.OK(c, analytics)
}

// DatabaseStatus handles GET /admin/database/status.
func (h *Handler) DatabaseStatus(c *gin.Context) {
	response.OK(c, h.adapter.Status(c.Request.Context()))
}

// DatabaseSwitch handles POST /admin/database/switch.
func (h *Handler) DatabaseSwitch(c *gin.Context) {
	var req SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: target must be remote or local")
		return
	}
	if req.Target == "remote" {
		if err := h.adapter.SwitchToRemote(c.Request.Context()); err != nil {
			h.logger.Warn("switch to remote refused", zap.Error(err))
			response.ServiceUnavailable(c, err.Error())
			return
		}
	} else {
		h.adapter.SwitchToLocal()
	}
	response.OK(c, h.adapter.Status(c.Request.Context()))
}

// DatabaseMigrate handles POST /admin/database/migrate, copying all local
// data to the remote store. Partial failure is reported, not fatal.
func (h *Handler) DatabaseMigrate(c *gin.Context) {
	report, err := h.adapter.MigrateFromLocalToRemote(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMigrationInProgress):
			response.Conflict(c, "", "a migration is already running")
		case errors.Is(err, store.ErrRemoteUnavailable):
			response.ServiceUnavailable(c, err.Error())
		default:
			h.logger.Error("migration failed", zap.Error(err))
			response.Internal(c, "migration failed")
		}
		return
	}
	response.OK(c, report)
}
