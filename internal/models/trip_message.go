package models

import (
	"time"

	"github.com/google/uuid"
)

// TripMessage is an immutable chat message posted by a trip member.
type TripMessage struct {
	ID        uuid.UUID `json:"id"`
	TripID    uuid.UUID `json:"trip_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
