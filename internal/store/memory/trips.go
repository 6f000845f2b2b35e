package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type tripStore struct{ s *Store }

func (r tripStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	return r.s.do(ctx, "CreateTrip", func(d *data) error {
		if _, ok := d.users[t.CreatedBy]; !ok {
			return store.ErrNotFound
		}
		t.ID = uuid.New()
		t.Status = models.TripStatusOpen
		t.CreatedAt = r.s.stamp()
		d.trips[t.ID] = *t
		return nil
	})
}

func (r tripStore) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var out models.Trip
	err := r.s.do(ctx, "GetTrip", func(d *data) error {
		t, ok := d.trips[id]
		if !ok {
			return store.ErrNotFound
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r tripStore) SearchOpenTrips(ctx context.Context, f store.TripFilter) ([]models.Trip, error) {
	var out []models.Trip
	dest := strings.TrimSpace(f.Destination)
	err := r.s.do(ctx, "SearchOpenTrips", func(d *data) error {
		for _, t := range d.trips {
			if t.Status != models.TripStatusOpen || t.StartDate.Before(f.StartsOnOrAfter) {
				continue
			}
			if dest != "" && !containsFold(t.Destination, dest) {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	sortTrips(out)
	return out, err
}

func (r tripStore) ListTripsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Trip, error) {
	var out []models.Trip
	want := idSet(ids)
	err := r.s.do(ctx, "ListTripsByIDs", func(d *data) error {
		for id := range want {
			if t, ok := d.trips[id]; ok {
				out = append(out, t)
			}
		}
		return nil
	})
	sortTrips(out)
	return out, err
}

func (r tripStore) ListExpiredOpenTrips(ctx context.Context, before time.Time, limit int) ([]models.Trip, error) {
	var out []models.Trip
	err := r.s.do(ctx, "ListExpiredOpenTrips", func(d *data) error {
		for _, t := range d.trips {
			if t.Status == models.TripStatusOpen && t.EndDate.Before(before) {
				out = append(out, t)
			}
		}
		return nil
	})
	sortTrips(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r tripStore) CloseTrip(ctx context.Context, id uuid.UUID) error {
	return r.s.do(ctx, "CloseTrip", func(d *data) error {
		t, ok := d.trips[id]
		if !ok {
			return store.ErrNotFound
		}
		if t.Status != models.TripStatusOpen {
			return store.ErrConflict
		}
		t.Status = models.TripStatusClosed
		d.trips[id] = t
		return nil
	})
}

func (r tripStore) SetTranscriptKey(ctx context.Context, id uuid.UUID, key string) error {
	return r.s.do(ctx, "SetTranscriptKey", func(d *data) error {
		t, ok := d.trips[id]
		if !ok {
			return store.ErrNotFound
		}
		t.TranscriptKey = key
		d.trips[id] = t
		return nil
	})
}
