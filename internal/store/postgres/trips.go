package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type tripStore struct{ s *Store }

const tripColumns = `id, destination, start_date, end_date, trip_type, budget_range, group_type,
	max_members, description, status, created_by, transcript_key, created_at`

func (r tripStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	err := r.s.conn().QueryRow(ctx,
		`INSERT INTO trips (destination, start_date, end_date, trip_type, budget_range, group_type, max_members, description, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, status, created_at`,
		t.Destination, t.StartDate, t.EndDate, t.TripType, t.BudgetRange, t.GroupType, t.MaxMembers, t.Description, t.CreatedBy,
	).Scan(&t.ID, &t.Status, &t.CreatedAt)
	return classify("create trip", err)
}

func (r tripStore) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	row := r.s.conn().QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	t, err := scanTrip(row)
	if err != nil {
		return nil, classify("get trip", err)
	}
	return t, nil
}

func (r tripStore) SearchOpenTrips(ctx context.Context, f store.TripFilter) ([]models.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE status = 'open' AND start_date >= $1`
	args := []any{f.StartsOnOrAfter}
	if d := strings.TrimSpace(f.Destination); d != "" {
		q += ` AND destination ILIKE $2 ESCAPE '\'`
		args = append(args, "%"+escapeLike(d)+"%")
	}
	q += ` ORDER BY start_date ASC, created_at ASC`
	return r.query(ctx, "search trips", q, args...)
}

func (r tripStore) ListTripsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Trip, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, "list trips by ids",
		`SELECT `+tripColumns+` FROM trips WHERE id = ANY($1) ORDER BY start_date ASC, created_at ASC`, ids)
}

func (r tripStore) ListExpiredOpenTrips(ctx context.Context, before time.Time, limit int) ([]models.Trip, error) {
	return r.query(ctx, "list expired trips",
		`SELECT `+tripColumns+` FROM trips WHERE status = 'open' AND end_date < $1 ORDER BY end_date ASC LIMIT $2`,
		before, limit)
}

func (r tripStore) CloseTrip(ctx context.Context, id uuid.UUID) error {
	tag, err := r.s.conn().Exec(ctx,
		`UPDATE trips SET status = 'closed' WHERE id = $1 AND status = 'open'`, id)
	if err != nil {
		return classify("close trip", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetTrip(ctx, id); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

func (r tripStore) SetTranscriptKey(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.s.conn().Exec(ctx, `UPDATE trips SET transcript_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return classify("set transcript key", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r tripStore) query(ctx context.Context, op, sql string, args ...any) ([]models.Trip, error) {
	rows, err := r.s.conn().Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	var out []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, *t)
	}
	return out, classify(op, rows.Err())
}

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var t models.Trip
	err := row.Scan(&t.ID, &t.Destination, &t.StartDate, &t.EndDate, &t.TripType, &t.BudgetRange, &t.GroupType,
		&t.MaxMembers, &t.Description, &t.Status, &t.CreatedBy, &t.TranscriptKey, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
