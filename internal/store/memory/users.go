package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type userStore struct{ s *Store }

func (r userStore) CreateUser(ctx context.Context, u *models.User) error {
	return r.s.do(ctx, "CreateUser", func(d *data) error {
		email := strings.ToLower(u.Email)
		for _, existing := range d.users {
			if existing.Email == email {
				return store.ErrConflict
			}
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		u.Email = email
		u.CreatedAt = r.s.stamp()
		u.UpdatedAt = u.CreatedAt
		d.users[u.ID] = *u
		return nil
	})
}

func (r userStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.find(ctx, "GetUserByID", func(u models.User) bool { return u.ID == id })
}

func (r userStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(email)
	return r.find(ctx, "GetUserByEmail", func(u models.User) bool { return u.Email == email })
}

func (r userStore) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, bio string) (*models.User, error) {
	var out models.User
	err := r.s.do(ctx, "UpdateProfile", func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return store.ErrNotFound
		}
		u.DisplayName = displayName
		u.Bio = bio
		u.UpdatedAt = r.s.stamp()
		d.users[id] = u
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r userStore) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	out := make(map[uuid.UUID]models.Profile, len(ids))
	err := r.s.do(ctx, "GetProfiles", func(d *data) error {
		for _, id := range ids {
			if u, ok := d.users[id]; ok {
				out[id] = u.ToProfile()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetVerified flips the verification flag. Verification happens out of band,
// so this is only reachable from tests and seeding.
func (s *Store) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	return s.do(ctx, "SetVerified", func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return store.ErrNotFound
		}
		u.Verified = verified
		d.users[id] = u
		return nil
	})
}

func (r userStore) find(ctx context.Context, op string, match func(models.User) bool) (*models.User, error) {
	var out *models.User
	err := r.s.do(ctx, op, func(d *data) error {
		for _, u := range d.users {
			if match(u) {
				u := u
				out = &u
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}
