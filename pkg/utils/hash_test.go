package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheck(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	hashed, err := HashPassword("himalaya-2025")
	require.NoError(t, err)
	assert.NotEqual(t, "himalaya-2025", hashed)
	assert.True(t, CheckPassword("himalaya-2025", hashed))
	assert.False(t, CheckPassword("himalaya-2024", hashed))

	_, err = HashPassword(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
