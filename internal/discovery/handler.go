package discovery

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yatri-app/backend/pkg/response"
)

// Suggester is satisfied by *Generator.
type Suggester interface {
	Generate(ctx context.Context, req Request) (*Suggestions, error)
}

// Handler serves POST /discover.
type Handler struct {
	gen Suggester
}

// NewHandler creates a discovery handler.
func NewHandler(gen Suggester) *Handler {
	return &Handler{gen: gen}
}

// Discover handles POST /discover.
func (h *Handler) Discover(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	out, err := h.gen.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err, "Failed to generate suggestions")
		return
	}
	response.OK(c, out)
}
