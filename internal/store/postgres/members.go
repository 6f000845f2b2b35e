package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
)

type memberStore struct{ s *Store }

func (r memberStore) AddMember(ctx context.Context, m *models.TripMember) error {
	err := r.s.conn().QueryRow(ctx,
		`INSERT INTO trip_members (trip_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (trip_id, user_id) DO UPDATE SET trip_id = EXCLUDED.trip_id
		 RETURNING role, joined_at`,
		m.TripID, m.UserID, m.Role,
	).Scan(&m.Role, &m.JoinedAt)
	return classify("add member", err)
}

func (r memberStore) IsMember(ctx context.Context, tripID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.s.conn().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trip_members WHERE trip_id = $1 AND user_id = $2)`, tripID, userID,
	).Scan(&ok)
	return ok, classify("is member", err)
}

func (r memberStore) ListMembers(ctx context.Context, tripIDs []uuid.UUID) ([]models.TripMember, error) {
	if len(tripIDs) == 0 {
		return nil, nil
	}
	rows, err := r.s.conn().Query(ctx,
		`SELECT trip_id, user_id, role, joined_at FROM trip_members WHERE trip_id = ANY($1) ORDER BY joined_at ASC`, tripIDs)
	if err != nil {
		return nil, classify("list members", err)
	}
	defer rows.Close()
	var out []models.TripMember
	for rows.Next() {
		var m models.TripMember
		if err := rows.Scan(&m.TripID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, classify("list members", err)
		}
		out = append(out, m)
	}
	return out, classify("list members", rows.Err())
}

func (r memberStore) ListTripIDsForMember(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.s.conn().Query(ctx, `SELECT trip_id FROM trip_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, classify("list member trips", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, classify("list member trips", err)
		}
		out = append(out, id)
	}
	return out, classify("list member trips", rows.Err())
}
