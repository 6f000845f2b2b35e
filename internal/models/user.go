package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered traveler.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Bio          string    `json:"bio,omitempty"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the public view of a user used to annotate trips, requests and messages.
type Profile struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	Verified    bool      `json:"verified"`
}

// ToProfile converts User to Profile.
func (u *User) ToProfile() Profile {
	return Profile{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Verified:    u.Verified,
	}
}
