// Package store defines the data-access interfaces the trip services depend on.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write violates a uniqueness or state precondition.
	ErrConflict = errors.New("store: conflict")
	// ErrForbidden is returned when the access policy rejects a write
	// (e.g. a non-member inserting a trip message).
	ErrForbidden = errors.New("store: forbidden by access policy")
)

// TripFilter narrows SearchOpenTrips.
type TripFilter struct {
	// Destination is a case-insensitive substring; empty matches all.
	Destination string
	// StartsOnOrAfter keeps trips whose start date is on or after this date.
	StartsOnOrAfter time.Time
}

// TripStore persists trips.
type TripStore interface {
	// CreateTrip inserts a trip and fills ID, Status and CreatedAt.
	CreateTrip(ctx context.Context, trip *models.Trip) error
	// GetTrip returns ErrNotFound when missing.
	GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	// SearchOpenTrips returns open trips matching the filter ordered by start date ascending.
	SearchOpenTrips(ctx context.Context, filter TripFilter) ([]models.Trip, error)
	// ListTripsByIDs returns trips in ids ordered by start date ascending.
	ListTripsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Trip, error)
	// ListExpiredOpenTrips returns open trips whose end date is before the given date.
	ListExpiredOpenTrips(ctx context.Context, before time.Time, limit int) ([]models.Trip, error)
	// CloseTrip moves an open trip to closed. Returns ErrConflict when it is not open.
	CloseTrip(ctx context.Context, id uuid.UUID) error
	// SetTranscriptKey records where a closed trip's chat transcript is stored.
	SetTranscriptKey(ctx context.Context, id uuid.UUID, key string) error
}

// MemberStore persists trip membership.
type MemberStore interface {
	// AddMember inserts a membership row; an existing (trip, user) row is left untouched.
	AddMember(ctx context.Context, member *models.TripMember) error
	IsMember(ctx context.Context, tripID, userID uuid.UUID) (bool, error)
	// ListMembers returns members of all given trips ordered by join time.
	ListMembers(ctx context.Context, tripIDs []uuid.UUID) ([]models.TripMember, error)
	ListTripIDsForMember(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// RequestStore persists join requests.
type RequestStore interface {
	// CreateRequest inserts a pending request. When the user already has a pending
	// request for the trip, req is overwritten with it and created is false.
	CreateRequest(ctx context.Context, req *models.TripRequest) (created bool, err error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.TripRequest, error)
	// ListPendingRequests returns pending requests for a trip, oldest first.
	ListPendingRequests(ctx context.Context, tripID uuid.UUID) ([]models.TripRequest, error)
	// ListRequestsByUser returns the user's requests; a nil tripIDs means all trips.
	ListRequestsByUser(ctx context.Context, userID uuid.UUID, tripIDs []uuid.UUID) ([]models.TripRequest, error)
	// ResolveRequest moves a pending request to status. Returns ErrConflict when the
	// request is no longer pending and ErrNotFound when it does not exist.
	ResolveRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus, reviewerID uuid.UUID) error
}

// MessageStore persists trip chat messages.
type MessageStore interface {
	// CreateMessage inserts a message if the sender is a member of the trip,
	// otherwise returns ErrForbidden. A trip that is no longer open gives ErrConflict.
	CreateMessage(ctx context.Context, msg *models.TripMessage) error
	// ListMessages returns a trip's messages in creation order.
	ListMessages(ctx context.Context, tripID uuid.UUID) ([]models.TripMessage, error)
}

// UserStore persists accounts and serves profile lookups.
type UserStore interface {
	// CreateUser returns ErrConflict when the email is taken.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, displayName, bio string) (*models.User, error)
	// GetProfiles resolves many users in one lookup. Unknown ids are omitted.
	GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error)
}

// Store groups the per-entity stores.
type Store interface {
	Trips() TripStore
	Members() MemberStore
	Requests() RequestStore
	Messages() MessageStore
	Users() UserStore

	// WithTx runs fn inside a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
