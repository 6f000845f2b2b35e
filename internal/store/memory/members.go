package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type memberStore struct{ s *Store }

func (r memberStore) AddMember(ctx context.Context, m *models.TripMember) error {
	return r.s.do(ctx, "AddMember", func(d *data) error {
		if _, ok := d.trips[m.TripID]; !ok {
			return store.ErrNotFound
		}
		key := memberKey{m.TripID, m.UserID}
		if existing, ok := d.members[key]; ok {
			*m = existing
			return nil
		}
		if m.Role == "" {
			m.Role = models.MemberRoleMember
		}
		if m.Role == models.MemberRoleOwner {
			for k, other := range d.members {
				if k.trip == m.TripID && other.Role == models.MemberRoleOwner {
					return store.ErrConflict
				}
			}
		}
		m.JoinedAt = r.s.stamp()
		d.members[key] = *m
		return nil
	})
}

func (r memberStore) IsMember(ctx context.Context, tripID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.s.do(ctx, "IsMember", func(d *data) error {
		_, ok = d.members[memberKey{tripID, userID}]
		return nil
	})
	return ok, err
}

func (r memberStore) ListMembers(ctx context.Context, tripIDs []uuid.UUID) ([]models.TripMember, error) {
	var out []models.TripMember
	want := idSet(tripIDs)
	err := r.s.do(ctx, "ListMembers", func(d *data) error {
		for k, m := range d.members {
			if _, ok := want[k.trip]; ok {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, err
}

func (r memberStore) ListTripIDsForMember(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := r.s.do(ctx, "ListTripIDsForMember", func(d *data) error {
		for k := range d.members {
			if k.user == userID {
				out = append(out, k.trip)
			}
		}
		return nil
	})
	return out, err
}
