package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type requestStore struct{ s *Store }

const requestColumns = `id, trip_id, user_id, status, answers, message, created_at, reviewed_by, reviewed_at`

// CreateRequest relies on the partial unique index over pending (trip_id, user_id).
func (r requestStore) CreateRequest(ctx context.Context, req *models.TripRequest) (bool, error) {
	err := r.s.conn().QueryRow(ctx,
		`INSERT INTO trip_requests (trip_id, user_id, answers, message)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (trip_id, user_id) WHERE status = 'pending' DO NOTHING
		 RETURNING id, status, created_at`,
		req.TripID, req.UserID, req.Answers, req.Message,
	).Scan(&req.ID, &req.Status, &req.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, classify("create request", err)
	}
	row := r.s.conn().QueryRow(ctx,
		`SELECT `+requestColumns+` FROM trip_requests WHERE trip_id = $1 AND user_id = $2 AND status = 'pending'`,
		req.TripID, req.UserID)
	existing, err := scanRequest(row)
	if err != nil {
		return false, classify("load pending request", err)
	}
	*req = *existing
	return false, nil
}

func (r requestStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.TripRequest, error) {
	req, err := scanRequest(r.s.conn().QueryRow(ctx, `SELECT `+requestColumns+` FROM trip_requests WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get request", err)
	}
	return req, nil
}

func (r requestStore) ListPendingRequests(ctx context.Context, tripID uuid.UUID) ([]models.TripRequest, error) {
	return r.query(ctx, "list pending requests",
		`SELECT `+requestColumns+` FROM trip_requests WHERE trip_id = $1 AND status = 'pending' ORDER BY created_at ASC`, tripID)
}

func (r requestStore) ListRequestsByUser(ctx context.Context, userID uuid.UUID, tripIDs []uuid.UUID) ([]models.TripRequest, error) {
	if tripIDs == nil {
		return r.query(ctx, "list user requests",
			`SELECT `+requestColumns+` FROM trip_requests WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	}
	if len(tripIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx, "list user requests",
		`SELECT `+requestColumns+` FROM trip_requests WHERE user_id = $1 AND trip_id = ANY($2) ORDER BY created_at ASC`,
		userID, tripIDs)
}

func (r requestStore) ResolveRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus, reviewerID uuid.UUID) error {
	tag, err := r.s.conn().Exec(ctx,
		`UPDATE trip_requests SET status = $2, reviewed_by = $3, reviewed_at = NOW()
		 WHERE id = $1 AND status = 'pending'`, id, status, reviewerID)
	if err != nil {
		return classify("resolve request", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetRequest(ctx, id); err != nil {
		return err
	}
	return store.ErrConflict
}

func (r requestStore) query(ctx context.Context, op, sql string, args ...any) ([]models.TripRequest, error) {
	rows, err := r.s.conn().Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	var out []models.TripRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, *req)
	}
	return out, classify(op, rows.Err())
}

func scanRequest(row pgx.Row) (*models.TripRequest, error) {
	var req models.TripRequest
	err := row.Scan(&req.ID, &req.TripID, &req.UserID, &req.Status, &req.Answers, &req.Message,
		&req.CreatedAt, &req.ReviewedBy, &req.ReviewedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
