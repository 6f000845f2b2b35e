package hotels

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yatri-app/backend/pkg/response"
)

// Looker is satisfied by *Client.
type Looker interface {
	Lookup(ctx context.Context, q Query) ([]Hotel, error)
}

// Handler serves GET /hotels.
type Handler struct {
	hotels Looker
}

// NewHandler creates a hotels handler.
func NewHandler(hotels Looker) *Handler {
	return &Handler{hotels: hotels}
}

// List handles GET /hotels?location=&currency=&limit=.
func (h *Handler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := h.hotels.Lookup(c.Request.Context(), Query{
		Location: c.Query("location"),
		Currency: c.Query("currency"),
		Limit:    limit,
	})
	if err != nil {
		response.Error(c, err, "Failed to fetch hotels")
		return
	}
	response.OK(c, list)
}
