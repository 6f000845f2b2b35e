package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
)

type userStore struct{ s *Store }

const userColumns = `id, email, password_hash, display_name, bio, verified, created_at, updated_at`

func (r userStore) CreateUser(ctx context.Context, u *models.User) error {
	err := r.s.conn().QueryRow(ctx,
		`INSERT INTO users (email, password_hash, display_name, bio) VALUES ($1, $2, $3, $4)
		 RETURNING id, verified, created_at, updated_at`,
		strings.ToLower(u.Email), u.PasswordHash, u.DisplayName, u.Bio,
	).Scan(&u.ID, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	return classify("create user", err)
}

func (r userStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r userStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r userStore) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, bio string) (*models.User, error) {
	return r.get(ctx,
		`UPDATE users SET display_name = $2, bio = $3, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns,
		id, displayName, bio)
}

func (r userStore) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	out := make(map[uuid.UUID]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.s.conn().Query(ctx,
		`SELECT id, display_name, bio, verified FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, classify("get profiles", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.Bio, &p.Verified); err != nil {
			return nil, classify("get profiles", err)
		}
		out[p.UserID] = p
	}
	return out, classify("get profiles", rows.Err())
}

func (r userStore) get(ctx context.Context, sql string, args ...any) (*models.User, error) {
	var u models.User
	err := r.s.conn().QueryRow(ctx, sql, args...).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Bio, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, classify("get user", err)
	}
	return &u, nil
}
