package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a join request.
// pending moves exactly once to accepted or declined.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
)

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusDeclined
}

// ScreeningAnswers holds the requester's answers to the fixed screening questions.
type ScreeningAnswers struct {
	ArrivalTime string `json:"arrival_time"`
	FirstVisit  string `json:"first_visit"`
	GroupStay   string `json:"group_stay"`
}

// TripRequest is a user's ask to join a trip.
type TripRequest struct {
	ID         uuid.UUID        `json:"id"`
	TripID     uuid.UUID        `json:"trip_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Status     RequestStatus    `json:"status"`
	Answers    ScreeningAnswers `json:"answers"`
	Message    string           `json:"message,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	ReviewedBy *uuid.UUID       `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time       `json:"reviewed_at,omitempty"`
}
