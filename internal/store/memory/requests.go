package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type requestStore struct{ s *Store }

func (r requestStore) CreateRequest(ctx context.Context, req *models.TripRequest) (bool, error) {
	created := false
	err := r.s.do(ctx, "CreateRequest", func(d *data) error {
		if _, ok := d.trips[req.TripID]; !ok {
			return store.ErrNotFound
		}
		for _, existing := range d.requests {
			if existing.TripID == req.TripID && existing.UserID == req.UserID && existing.Status == models.RequestStatusPending {
				*req = existing
				return nil
			}
		}
		req.ID = uuid.New()
		req.Status = models.RequestStatusPending
		req.CreatedAt = r.s.stamp()
		req.ReviewedBy, req.ReviewedAt = nil, nil
		d.requests[req.ID] = *req
		created = true
		return nil
	})
	return created, err
}

func (r requestStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.TripRequest, error) {
	var out models.TripRequest
	err := r.s.do(ctx, "GetRequest", func(d *data) error {
		req, ok := d.requests[id]
		if !ok {
			return store.ErrNotFound
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r requestStore) ListPendingRequests(ctx context.Context, tripID uuid.UUID) ([]models.TripRequest, error) {
	return r.filter(ctx, "ListPendingRequests", func(req models.TripRequest) bool {
		return req.TripID == tripID && req.Status == models.RequestStatusPending
	})
}

func (r requestStore) ListRequestsByUser(ctx context.Context, userID uuid.UUID, tripIDs []uuid.UUID) ([]models.TripRequest, error) {
	var want map[uuid.UUID]struct{}
	if tripIDs != nil {
		want = idSet(tripIDs)
	}
	return r.filter(ctx, "ListRequestsByUser", func(req models.TripRequest) bool {
		if req.UserID != userID {
			return false
		}
		if want == nil {
			return true
		}
		_, ok := want[req.TripID]
		return ok
	})
}

func (r requestStore) ResolveRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus, reviewerID uuid.UUID) error {
	return r.s.do(ctx, "ResolveRequest", func(d *data) error {
		req, ok := d.requests[id]
		if !ok {
			return store.ErrNotFound
		}
		if req.Status != models.RequestStatusPending {
			return store.ErrConflict
		}
		at := r.s.stamp()
		reviewer := reviewerID
		req.Status = status
		req.ReviewedBy = &reviewer
		req.ReviewedAt = &at
		d.requests[id] = req
		return nil
	})
}

func (r requestStore) filter(ctx context.Context, op string, keep func(models.TripRequest) bool) ([]models.TripRequest, error) {
	var out []models.TripRequest
	err := r.s.do(ctx, op, func(d *data) error {
		for _, req := range d.requests {
			if keep(req) {
				out = append(out, req)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}
