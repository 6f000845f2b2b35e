package trips

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/middleware"
	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/pkg/response"
)

// Handler serves the trip directory and join-request endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a trips handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Search handles GET /trips?destination=.
func (h *Handler) Search(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	views, err := h.svc.Search(c.Request.Context(), c.Query("destination"), userID)
	if err != nil {
		response.Error(c, err, "Failed to load trips")
		return
	}
	response.OK(c, views)
}

// ListMine handles GET /trips/mine.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	views, err := h.svc.ListMine(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err, "Failed to load your trips")
		return
	}
	response.OK(c, views)
}

// Create handles POST /trips.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	view, err := h.svc.Create(c.Request.Context(), in, userID)
	if err != nil {
		response.Error(c, err, "Failed to create trip")
		return
	}
	response.Created(c, view)
}

// Get handles GET /trips/:id.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip id")
		return
	}
	view, err := h.svc.Get(c.Request.Context(), tripID, userID)
	if err != nil {
		response.Error(c, err, "Failed to load trip")
		return
	}
	response.OK(c, view)
}

// RequestToJoin handles POST /trips/:id/requests. An existing pending request is
// returned with 200, a new one with 201.
func (h *Handler) RequestToJoin(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip id")
		return
	}
	var in JoinInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	req, created, err := h.svc.RequestToJoin(c.Request.Context(), tripID, userID, in)
	if err != nil {
		response.Error(c, err, "Failed to send request")
		return
	}
	if created {
		response.Created(c, req)
		return
	}
	response.OK(c, req)
}

// ListPending handles GET /trips/:id/requests.
func (h *Handler) ListPending(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip id")
		return
	}
	pending, err := h.svc.ListPending(c.Request.Context(), tripID, userID)
	if err != nil {
		response.Error(c, err, "Failed to load requests")
		return
	}
	response.OK(c, pending)
}

// ReviewRequest is the body for POST /trips/:id/requests/:requestId/review.
type ReviewRequest struct {
	Action      models.RequestStatus `json:"action" binding:"required"`
	RequesterID *uuid.UUID           `json:"requester_id,omitempty"`
}

// Review handles POST /trips/:id/requests/:requestId/review.
func (h *Handler) Review(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip id")
		return
	}
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}
	var body ReviewRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	in := ReviewInput{RequestID: requestID, TripID: tripID, ReviewerID: userID, Action: body.Action}
	if body.RequesterID != nil {
		in.RequesterID = *body.RequesterID
	}
	req, err := h.svc.Review(c.Request.Context(), in)
	if err != nil {
		h.logger.Debug("review failed", zap.String("request_id", requestID.String()), zap.Error(err))
		response.Error(c, err, "Failed to update request")
		return
	}
	response.OK(c, req)
}
