package trips

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yatri-app/backend/internal/membership"
	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

// TripView is a trip with the viewer-relative fields derived at query time.
type TripView struct {
	ID          uuid.UUID          `json:"id"`
	Destination string             `json:"destination"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	TripType    models.TripType    `json:"trip_type"`
	BudgetRange models.BudgetRange `json:"budget_range"`
	GroupType   models.GroupType   `json:"group_type"`
	MaxMembers  int                `json:"max_members"`
	Description string             `json:"description,omitempty"`
	Status      models.TripStatus  `json:"status"`
	CreatedBy   uuid.UUID          `json:"created_by"`
	CreatedAt   time.Time          `json:"created_at"`
	Archived    bool               `json:"archived"`
	membership.View
}

func newTripView(t models.Trip, v membership.View) TripView {
	return TripView{
		ID:          t.ID,
		Destination: t.Destination,
		StartDate:   t.StartDate.Format(models.DateLayout),
		EndDate:     t.EndDate.Format(models.DateLayout),
		TripType:    t.TripType,
		BudgetRange: t.BudgetRange,
		GroupType:   t.GroupType,
		MaxMembers:  t.MaxMembers,
		Description: t.Description,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		Archived:    t.TranscriptKey != "",
		View:        v,
	}
}

// annotate loads members, the viewer's requests and verification flags for
// trips in three batched lookups and derives each trip's view.
func (s *Service) annotate(ctx context.Context, trips []models.Trip, viewerID uuid.UUID) ([]TripView, error) {
	if len(trips) == 0 {
		return []TripView{}, nil
	}
	ids := make([]uuid.UUID, len(trips))
	for i, t := range trips {
		ids[i] = t.ID
	}

	var (
		members  []models.TripMember
		requests []models.TripRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = s.store.Members().ListMembers(gctx, ids)
		return err
	})
	g.Go(func() error {
		if viewerID == uuid.Nil {
			return nil
		}
		var err error
		requests, err = s.store.Requests().ListRequestsByUser(gctx, viewerID, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, store.Translate("trips.annotate", err, "trip not found")
	}

	profiles, err := s.store.Users().GetProfiles(ctx, membership.MemberIDs(members))
	if err != nil {
		return nil, store.Translate("trips.annotate", err, "trip not found")
	}
	verified := make(map[uuid.UUID]bool, len(profiles))
	for id, p := range profiles {
		verified[id] = p.Verified
	}

	idx := membership.NewIndex(members, requests, verified)
	views := make([]TripView, len(trips))
	for i, t := range trips {
		views[i] = newTripView(t, idx.Resolve(t, viewerID))
	}
	return views, nil
}
