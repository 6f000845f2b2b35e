package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type messageStore struct{ s *Store }

func (r messageStore) CreateMessage(ctx context.Context, m *models.TripMessage) error {
	return r.s.do(ctx, "CreateMessage", func(d *data) error {
		if _, ok := d.members[memberKey{m.TripID, m.UserID}]; !ok {
			return store.ErrForbidden
		}
		if d.trips[m.TripID].Status != models.TripStatusOpen {
			return store.ErrConflict
		}
		m.ID = uuid.New()
		m.CreatedAt = r.s.stamp()
		d.messages[m.TripID] = append(d.messages[m.TripID], *m)
		return nil
	})
}

func (r messageStore) ListMessages(ctx context.Context, tripID uuid.UUID) ([]models.TripMessage, error) {
	var out []models.TripMessage
	err := r.s.do(ctx, "ListMessages", func(d *data) error {
		out = append(out, d.messages[tripID]...)
		return nil
	})
	return out, err
}
