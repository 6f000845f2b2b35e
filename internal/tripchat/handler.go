package tripchat

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/middleware"
	"github.com/yatri-app/backend/pkg/response"
)

// Handler serves the trip chat HTTP endpoints.
type Handler struct {
	channel *Channel
}

// NewHandler creates a trip chat handler.
func NewHandler(channel *Channel) *Handler {
	return &Handler{channel: channel}
}

// SendRequest is the body for POST /trips/:id/messages.
type SendRequest struct {
	Content string `json:"content"`
}

// History handles GET /trips/:id/messages.
func (h *Handler) History(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip id")
		return
	}
	msgs, err := h.channel.FetchHistory(c.Request.Context(), tripID, userID)
	if err != nil {
		response.Error(c, err, "Failed to load messages")
		return
	}
	response.OK(c, msgs)
}

// Send handles POST /trips/:id/messages.
func (h *Handler) Send(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip id")
		return
	}
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	msg, err := h.channel.Send(c.Request.Context(), tripID, userID, req.Content)
	if err != nil {
		response.Error(c, err, "Failed to send message")
		return
	}
	response.Created(c, msg)
}

// Transcript handles GET /trips/:id/transcript.
func (h *Handler) Transcript(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip id")
		return
	}
	url, err := h.channel.TranscriptURL(c.Request.Context(), tripID, userID)
	if err != nil {
		response.Error(c, err, "Failed to load transcript")
		return
	}
	response.OK(c, gin.H{"url": url})
}
