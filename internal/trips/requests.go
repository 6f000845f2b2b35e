package trips

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

const (
	maxAnswerLen  = 500
	maxMessageLen = 1000
	// fallbackName is shown when a requester's profile cannot be resolved.
	fallbackName = "Traveler"
)

// JoinInput carries the screening answers and an optional note.
type JoinInput struct {
	Answers models.ScreeningAnswers `json:"answers"`
	Message string                  `json:"message"`
}

func (in JoinInput) normalize() (JoinInput, error) {
	out := JoinInput{
		Answers: models.ScreeningAnswers{
			ArrivalTime: strings.TrimSpace(in.Answers.ArrivalTime),
			FirstVisit:  strings.TrimSpace(in.Answers.FirstVisit),
			GroupStay:   strings.TrimSpace(in.Answers.GroupStay),
		},
		Message: strings.TrimSpace(in.Message),
	}
	a := out.Answers
	if a.ArrivalTime == "" || a.FirstVisit == "" || a.GroupStay == "" {
		return out, apperr.Validation("please answer all screening questions")
	}
	if len(a.ArrivalTime) > maxAnswerLen || len(a.FirstVisit) > maxAnswerLen || len(a.GroupStay) > maxAnswerLen {
		return out, apperr.Validation("screening answers are too long")
	}
	if len(out.Message) > maxMessageLen {
		return out, apperr.Validation("message is too long")
	}
	return out, nil
}

// RequestToJoin records a pending request. While a request is pending, repeated
// calls return it unchanged with created=false, so the write is safe to resubmit.
func (s *Service) RequestToJoin(ctx context.Context, tripID, requesterID uuid.UUID, in JoinInput) (*models.TripRequest, bool, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, false, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	trip, err := s.store.Trips().GetTrip(ctx, tripID)
	if err != nil {
		return nil, false, store.Translate("trips.request", err, "trip not found")
	}
	if trip.Status != models.TripStatusOpen {
		return nil, false, apperr.Conflict("this trip is no longer accepting requests")
	}
	member, err := s.store.Members().IsMember(ctx, tripID, requesterID)
	if err != nil {
		return nil, false, store.Translate("trips.request", err, "trip not found")
	}
	if member {
		return nil, false, apperr.Conflict("you are already a member of this trip")
	}

	req := &models.TripRequest{TripID: tripID, UserID: requesterID, Answers: in.Answers, Message: in.Message}
	created, err := s.store.Requests().CreateRequest(ctx, req)
	if err != nil {
		return nil, false, store.Translate("trips.request", err, "trip not found")
	}
	if created {
		s.logger.Info("join request created", zap.String("trip_id", tripID.String()),
			zap.String("request_id", req.ID.String()), zap.String("user_id", requesterID.String()))
	}
	return req, created, nil
}

// PendingRequest is a pending request annotated with the requester's profile.
type PendingRequest struct {
	models.TripRequest
	RequesterName     string `json:"requester_name"`
	RequesterVerified bool   `json:"requester_verified"`
}

// ListPending returns the trip's pending requests, oldest first. Only the
// trip owner may list them.
func (s *Service) ListPending(ctx context.Context, tripID, viewerID uuid.UUID) ([]PendingRequest, error) {
	var out []PendingRequest
	err := s.read(ctx, func(ctx context.Context) error {
		trip, err := s.store.Trips().GetTrip(ctx, tripID)
		if err != nil {
			return store.Translate("trips.list_pending", err, "trip not found")
		}
		if trip.CreatedBy != viewerID {
			return apperr.Forbidden("only the trip owner can view join requests")
		}
		pending, err := s.store.Requests().ListPendingRequests(ctx, tripID)
		if err != nil {
			return store.Translate("trips.list_pending", err, "trip not found")
		}
		ids := make([]uuid.UUID, 0, len(pending))
		for _, r := range pending {
			ids = append(ids, r.UserID)
		}
		profiles, err := s.store.Users().GetProfiles(ctx, ids)
		if err != nil {
			return store.Translate("trips.list_pending", err, "trip not found")
		}
		out = make([]PendingRequest, len(pending))
		for i, r := range pending {
			out[i] = PendingRequest{TripRequest: r, RequesterName: fallbackName}
			if p, ok := profiles[r.UserID]; ok {
				out[i].RequesterName = p.DisplayName
				out[i].RequesterVerified = p.Verified
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReviewInput identifies a review decision. TripID and RequesterID are
// optional cross-checks against the stored request.
type ReviewInput struct {
	RequestID   uuid.UUID
	TripID      uuid.UUID
	RequesterID uuid.UUID
	ReviewerID  uuid.UUID
	Action      models.RequestStatus
}

// Review resolves a pending request. Accepting also adds the requester as a
// member in the same transaction; a failed membership write rolls the
// decision back and surfaces a consistency error.
func (s *Service) Review(ctx context.Context, in ReviewInput) (*models.TripRequest, error) {
	if in.Action != models.RequestStatusAccepted && in.Action != models.RequestStatusDeclined {
		return nil, apperr.Validation("action must be accepted or declined")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.store.Requests().GetRequest(ctx, in.RequestID)
	if err != nil {
		return nil, store.Translate("trips.review", err, "request not found")
	}
	if in.TripID != uuid.Nil && req.TripID != in.TripID {
		return nil, apperr.Validation("request does not belong to this trip")
	}
	if in.RequesterID != uuid.Nil && req.UserID != in.RequesterID {
		return nil, apperr.Validation("request was made by a different user")
	}
	trip, err := s.store.Trips().GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, store.Translate("trips.review", err, "trip not found")
	}
	if trip.CreatedBy != in.ReviewerID {
		return nil, apperr.Forbidden("only the trip owner can review requests")
	}
	if req.Status != models.RequestStatusPending {
		return nil, apperr.Conflict("this request has already been reviewed")
	}
	if in.Action == models.RequestStatusAccepted {
		s.warnIfFull(ctx, trip)
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Requests().ResolveRequest(ctx, req.ID, in.Action, in.ReviewerID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.Conflict("this request has already been reviewed")
			}
			return store.Translate("trips.review", err, "request not found")
		}
		if in.Action != models.RequestStatusAccepted {
			return nil
		}
		m := &models.TripMember{TripID: req.TripID, UserID: req.UserID, Role: models.MemberRoleMember}
		if err := tx.Members().AddMember(ctx, m); err != nil {
			return apperr.Consistency("trips.review", "request accepted but membership was not recorded", err)
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConsistency) {
			s.logger.Error("review rolled back", zap.String("trip_id", req.TripID.String()),
				zap.String("request_id", req.ID.String()), zap.Error(err))
		}
		return nil, err
	}

	reviewedAt := s.now().UTC()
	reviewer := in.ReviewerID
	req.Status = in.Action
	req.ReviewedBy = &reviewer
	req.ReviewedAt = &reviewedAt
	s.logger.Info("join request reviewed", zap.String("trip_id", req.TripID.String()),
		zap.String("request_id", req.ID.String()), zap.String("status", string(in.Action)))
	return req, nil
}

// warnIfFull logs when an accept would exceed max_members. Capacity is not enforced.
func (s *Service) warnIfFull(ctx context.Context, trip *models.Trip) {
	members, err := s.store.Members().ListMembers(ctx, []uuid.UUID{trip.ID})
	if err != nil {
		return
	}
	if len(members) >= trip.MaxMembers {
		s.logger.Warn("accepting request beyond trip capacity", zap.String("trip_id", trip.ID.String()),
			zap.Int("members", len(members)), zap.Int("max_members", trip.MaxMembers))
	}
}
