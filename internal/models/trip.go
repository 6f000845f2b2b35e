package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used for trip dates on the wire.
const DateLayout = "2006-01-02"

// TripType is the style of a trip.
type TripType string

const (
	TripTypeDarshan   TripType = "darshan"
	TripTypeTrek      TripType = "trek"
	TripTypeRelaxed   TripType = "relaxed"
	TripTypeAdventure TripType = "adventure"
	TripTypeSpiritual TripType = "spiritual"
)

// Valid reports whether t is a known trip type.
func (t TripType) Valid() bool {
	switch t {
	case TripTypeDarshan, TripTypeTrek, TripTypeRelaxed, TripTypeAdventure, TripTypeSpiritual:
		return true
	}
	return false
}

// BudgetRange is the spending band of a trip.
type BudgetRange string

const (
	BudgetRangeBudget   BudgetRange = "budget"
	BudgetRangeMidRange BudgetRange = "mid-range"
	BudgetRangePremium  BudgetRange = "premium"
)

// Valid reports whether b is a known budget range.
func (b BudgetRange) Valid() bool {
	switch b {
	case BudgetRangeBudget, BudgetRangeMidRange, BudgetRangePremium:
		return true
	}
	return false
}

// GroupType restricts who a trip is meant for.
type GroupType string

const (
	GroupTypeWomenOnly GroupType = "women-only"
	GroupTypeMixed     GroupType = "mixed"
	GroupTypeFamily    GroupType = "family"
)

// Valid reports whether g is a known group type.
func (g GroupType) Valid() bool {
	switch g {
	case GroupTypeWomenOnly, GroupTypeMixed, GroupTypeFamily:
		return true
	}
	return false
}

// TripStatus is the soft lifecycle of a trip. Trips are never hard-deleted.
type TripStatus string

const (
	TripStatusOpen   TripStatus = "open"
	TripStatusClosed TripStatus = "closed"
)

// Trip is a proposed group journey owned by its creator.
// StartDate and EndDate are calendar dates stored at UTC midnight.
type Trip struct {
	ID            uuid.UUID   `json:"id"`
	Destination   string      `json:"destination"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
	TripType      TripType    `json:"trip_type"`
	BudgetRange   BudgetRange `json:"budget_range"`
	GroupType     GroupType   `json:"group_type"`
	MaxMembers    int         `json:"max_members"`
	Description   string      `json:"description,omitempty"`
	Status        TripStatus  `json:"status"`
	CreatedBy     uuid.UUID   `json:"created_by"`
	TranscriptKey string      `json:"-"`
	CreatedAt     time.Time   `json:"created_at"`
}

// MemberRole is the role a user holds inside a trip.
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleMember MemberRole = "member"
)

// TripMember links a user to a trip. Identity is (TripID, UserID).
type TripMember struct {
	TripID   uuid.UUID  `json:"trip_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}
