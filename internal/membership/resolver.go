// Package membership derives a viewer's relationship to a trip from the
// authoritative member and request rows. Nothing here performs I/O.
package membership

import (
	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
)

// Input is everything Resolve needs for one trip. Rows belonging to other
// trips are ignored, so callers may pass pre-fetched batches unfiltered.
type Input struct {
	Trip     models.Trip
	ViewerID uuid.UUID
	Members  []models.TripMember
	// Requests are the viewer's requests; rows for other users are ignored.
	Requests []models.TripRequest
	// Verified holds the verification flag per user id. Missing means unverified.
	Verified map[uuid.UUID]bool
}

// View is the derived, never-persisted relationship between a viewer and a trip.
type View struct {
	IsMember        bool                  `json:"is_member"`
	IsOwner         bool                  `json:"is_owner"`
	MemberCount     int                   `json:"member_count"`
	VerifiedCount   int                   `json:"verified_count"`
	MyRequestStatus *models.RequestStatus `json:"my_request_status"`
}

// Resolve computes the View. Ownership comes from the viewer's membership row
// holding the owner role.
func Resolve(in Input) View {
	var v View
	seen := make(map[uuid.UUID]struct{}, len(in.Members))
	for _, m := range in.Members {
		if m.TripID != in.Trip.ID {
			continue
		}
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		v.MemberCount++
		if in.Verified[m.UserID] {
			v.VerifiedCount++
		}
		if m.UserID == in.ViewerID {
			v.IsMember = true
			v.IsOwner = m.Role == models.MemberRoleOwner
		}
	}

	var latest *models.TripRequest
	for i := range in.Requests {
		r := &in.Requests[i]
		if r.TripID != in.Trip.ID || r.UserID != in.ViewerID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest != nil {
		status := latest.Status
		v.MyRequestStatus = &status
	}
	return v
}

// Index groups batched rows by trip so per-trip resolution stays linear.
type Index struct {
	members  map[uuid.UUID][]models.TripMember
	requests map[uuid.UUID][]models.TripRequest
	verified map[uuid.UUID]bool
}

// NewIndex builds an Index from rows spanning many trips.
func NewIndex(members []models.TripMember, requests []models.TripRequest, verified map[uuid.UUID]bool) *Index {
	idx := &Index{
		members:  make(map[uuid.UUID][]models.TripMember),
		requests: make(map[uuid.UUID][]models.TripRequest),
		verified: verified,
	}
	for _, m := range members {
		idx.members[m.TripID] = append(idx.members[m.TripID], m)
	}
	for _, r := range requests {
		idx.requests[r.TripID] = append(idx.requests[r.TripID], r)
	}
	return idx
}

// Resolve derives the View for trip and viewer.
func (idx *Index) Resolve(trip models.Trip, viewerID uuid.UUID) View {
	return Resolve(Input{
		Trip:     trip,
		ViewerID: viewerID,
		Members:  idx.members[trip.ID],
		Requests: idx.requests[trip.ID],
		Verified: idx.verified,
	})
}

// MemberIDs returns the distinct user ids across members.
func MemberIDs(members []models.TripMember) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(members))
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	return ids
}
