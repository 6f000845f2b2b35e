package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type messageStore struct{ s *Store }

// CreateMessage only inserts when the sender holds a membership row for the
// trip and the trip is open. The trip row is share-locked so CloseTrip waits for
// in-flight inserts, and a transcript exported after the close sees them all.
func (r messageStore) CreateMessage(ctx context.Context, m *models.TripMessage) error {
	err := r.s.conn().QueryRow(ctx,
		`INSERT INTO trip_messages (trip_id, user_id, content)
		 SELECT t.id, $2, $3 FROM trips t
		 WHERE t.id = $1 AND t.status = 'open'
		   AND EXISTS (SELECT 1 FROM trip_members WHERE trip_id = $1 AND user_id = $2)
		 FOR SHARE OF t
		 RETURNING id, created_at`,
		m.TripID, m.UserID, m.Content,
	).Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		member, err := r.s.Members().IsMember(ctx, m.TripID, m.UserID)
		if err != nil {
			return err
		}
		if !member {
			return store.ErrForbidden
		}
		return store.ErrConflict
	}
	return classify("create message", err)
}

func (r messageStore) ListMessages(ctx context.Context, tripID uuid.UUID) ([]models.TripMessage, error) {
	rows, err := r.s.conn().Query(ctx,
		`SELECT id, trip_id, user_id, content, created_at FROM trip_messages
		 WHERE trip_id = $1 ORDER BY created_at ASC, id ASC`, tripID)
	if err != nil {
		return nil, classify("list messages", err)
	}
	defer rows.Close()
	var out []models.TripMessage
	for rows.Next() {
		var m models.TripMessage
		if err := rows.Scan(&m.ID, &m.TripID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, classify("list messages", err)
		}
		out = append(out, m)
	}
	return out, classify("list messages", rows.Err())
}
