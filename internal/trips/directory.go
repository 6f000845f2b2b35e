package trips

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

const maxDescriptionLen = 2000

// CreateInput is the caller-supplied description of a new trip. Dates use
// the YYYY-MM-DD layout.
type CreateInput struct {
	Destination string             `json:"destination"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	TripType    models.TripType    `json:"trip_type"`
	BudgetRange models.BudgetRange `json:"budget_range"`
	GroupType   models.GroupType   `json:"group_type"`
	MaxMembers  int                `json:"max_members"`
	Description string             `json:"description"`
}

// toTrip validates in and builds the trip row. No I/O happens here.
func (in CreateInput) toTrip(ownerID uuid.UUID) (*models.Trip, error) {
	var missing []string
	dest := strings.TrimSpace(in.Destination)
	if dest == "" {
		missing = append(missing, "destination")
	}
	if strings.TrimSpace(in.StartDate) == "" {
		missing = append(missing, "start_date")
	}
	if strings.TrimSpace(in.EndDate) == "" {
		missing = append(missing, "end_date")
	}
	if in.TripType == "" {
		missing = append(missing, "trip_type")
	}
	if in.BudgetRange == "" {
		missing = append(missing, "budget_range")
	}
	if in.GroupType == "" {
		missing = append(missing, "group_type")
	}
	if in.MaxMembers == 0 {
		missing = append(missing, "max_members")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("missing required fields: " + strings.Join(missing, ", "))
	}

	start, err := time.Parse(models.DateLayout, strings.TrimSpace(in.StartDate))
	if err != nil {
		return nil, apperr.Validation("start_date must be a date in YYYY-MM-DD format")
	}
	end, err := time.Parse(models.DateLayout, strings.TrimSpace(in.EndDate))
	if err != nil {
		return nil, apperr.Validation("end_date must be a date in YYYY-MM-DD format")
	}
	switch {
	case end.Before(start):
		return nil, apperr.Validation("end_date must not be before start_date")
	case !in.TripType.Valid():
		return nil, apperr.Validation("unknown trip_type")
	case !in.BudgetRange.Valid():
		return nil, apperr.Validation("unknown budget_range")
	case !in.GroupType.Valid():
		return nil, apperr.Validation("unknown group_type")
	case in.MaxMembers < 1:
		return nil, apperr.Validation("max_members must be a positive number")
	case len(in.Description) > maxDescriptionLen:
		return nil, apperr.Validation("description is too long")
	}

	return &models.Trip{
		Destination: dest,
		StartDate:   start,
		EndDate:     end,
		TripType:    in.TripType,
		BudgetRange: in.BudgetRange,
		GroupType:   in.GroupType,
		MaxMembers:  in.MaxMembers,
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   ownerID,
	}, nil
}

// Create persists the trip and its owner membership in one transaction.
// If the membership write fails nothing is kept and a consistency error is returned.
func (s *Service) Create(ctx context.Context, in CreateInput, ownerID uuid.UUID) (*TripView, error) {
	trip, err := in.toTrip(ownerID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Trips().CreateTrip(ctx, trip); err != nil {
			return store.Translate("trips.create", err, "account not found")
		}
		owner := &models.TripMember{TripID: trip.ID, UserID: ownerID, Role: models.MemberRoleOwner}
		if err := tx.Members().AddMember(ctx, owner); err != nil {
			return apperr.Consistency("trips.create", "trip owner membership was not recorded", err)
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConsistency) {
			s.logger.Error("create trip rolled back", zap.String("owner_id", ownerID.String()), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("trip created", zap.String("trip_id", trip.ID.String()), zap.String("owner_id", ownerID.String()))

	views, err := s.annotate(ctx, []models.Trip{*trip}, ownerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Search returns open trips starting today or later, optionally filtered by a
// case-insensitive destination substring, earliest first.
func (s *Service) Search(ctx context.Context, destination string, viewerID uuid.UUID) ([]TripView, error) {
	filter := store.TripFilter{Destination: strings.TrimSpace(destination), StartsOnOrAfter: s.today()}
	var views []TripView
	err := s.read(ctx, func(ctx context.Context) error {
		trips, err := s.store.Trips().SearchOpenTrips(ctx, filter)
		if err != nil {
			return store.Translate("trips.search", err, "trip not found")
		}
		views, err = s.annotate(ctx, trips, viewerID)
		return err
	})
	if err != nil {
		s.logger.Warn("trip search failed", zap.String("destination", filter.Destination), zap.Error(err))
		return nil, err
	}
	return views, nil
}

// ListMine returns trips the viewer belongs to or has requested to join,
// including declined and pending requests, without duplicates.
func (s *Service) ListMine(ctx context.Context, viewerID uuid.UUID) ([]TripView, error) {
	var views []TripView
	err := s.read(ctx, func(ctx context.Context) error {
		memberOf, err := s.store.Members().ListTripIDsForMember(ctx, viewerID)
		if err != nil {
			return store.Translate("trips.list_mine", err, "trip not found")
		}
		requests, err := s.store.Requests().ListRequestsByUser(ctx, viewerID, nil)
		if err != nil {
			return store.Translate("trips.list_mine", err, "trip not found")
		}

		seen := make(map[uuid.UUID]struct{}, len(memberOf)+len(requests))
		ids := make([]uuid.UUID, 0, len(memberOf)+len(requests))
		add := func(id uuid.UUID) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		for _, id := range memberOf {
			add(id)
		}
		for _, r := range requests {
			add(r.TripID)
		}

		trips, err := s.store.Trips().ListTripsByIDs(ctx, ids)
		if err != nil {
			return store.Translate("trips.list_mine", err, "trip not found")
		}
		views, err = s.annotate(ctx, trips, viewerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Get returns one trip with its derived fields.
func (s *Service) Get(ctx context.Context, tripID, viewerID uuid.UUID) (*TripView, error) {
	var view TripView
	err := s.read(ctx, func(ctx context.Context) error {
		trip, err := s.store.Trips().GetTrip(ctx, tripID)
		if err != nil {
			return store.Translate("trips.get", err, "trip not found")
		}
		views, err := s.annotate(ctx, []models.Trip{*trip}, viewerID)
		if err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}
