package presence

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/middleware"
	"github.com/yatri-app/backend/pkg/response"
)

const maxLookup = 100

// Handler serves the presence endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a presence handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Heartbeat handles POST /presence/heartbeat.
func (h *Handler) Heartbeat(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.svc.Heartbeat(c.Request.Context(), userID); err != nil {
		h.logger.Warn("heartbeat failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.ServiceUnavailable(c, "Failed to update presence")
		return
	}
	response.OK(c, gin.H{"next_heartbeat_in": h.svc.Interval().Seconds()})
}

// Offline handles POST /presence/offline.
func (h *Handler) Offline(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.svc.SetOffline(c.Request.Context(), userID); err != nil {
		h.logger.Warn("set offline failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.ServiceUnavailable(c, "Failed to update presence")
		return
	}
	response.NoContent(c)
}

// Lookup handles GET /presence?user_ids=a,b.
func (h *Handler) Lookup(c *gin.Context) {
	var ids []uuid.UUID
	for _, raw := range strings.Split(c.Query("user_ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid user id: "+raw)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		response.BadRequest(c, "user_ids required")
		return
	}
	if len(ids) > maxLookup {
		response.BadRequest(c, "too many user ids")
		return
	}
	statuses, err := h.svc.Statuses(c.Request.Context(), ids)
	if err != nil {
		h.logger.Warn("presence lookup failed", zap.Error(err))
		response.ServiceUnavailable(c, "Failed to load presence")
		return
	}
	response.OK(c, statuses)
}
