package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", 1)
	userID := uuid.New()

	token, expiresAt, err := svc.Generate(userID, "asha@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "asha@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	svc := NewJWTService("secret", 1)
	other := NewJWTService("other", 1)
	token, _, err := other.Generate(uuid.New(), "a@example.com")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", 1)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }
	token, _, err := svc.Generate(uuid.New(), "a@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticatorRejectsRevoked(t *testing.T) {
	svc := NewJWTService("secret", 1)
	authn := NewAuthenticator(svc, NewMemoryRevoker())
	ctx := context.Background()

	token, _, err := svc.Generate(uuid.New(), "a@example.com")
	require.NoError(t, err)
	claims, err := authn.Authenticate(ctx, token)
	require.NoError(t, err)

	require.NoError(t, authn.Revoke(ctx, claims))
	_, err = authn.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	fresh, _, err := svc.Generate(claims.UserID, claims.Email)
	require.NoError(t, err)
	_, err = authn.Authenticate(ctx, fresh)
	assert.NoError(t, err)
}

func TestMemoryRevokerForgetsExpired(t *testing.T) {
	r := NewMemoryRevoker()
	now := time.Now()
	r.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, r.Revoke(ctx, "past", now.Add(-time.Minute)))
	ok, _ := r.IsRevoked(ctx, "a")
	assert.True(t, ok)
	ok, _ = r.IsRevoked(ctx, "past")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = r.IsRevoked(ctx, "a")
	assert.False(t, ok)
	require.NoError(t, r.Revoke(ctx, "b", now.Add(time.Minute)))
	assert.Len(t, r.revoked, 1)
}
