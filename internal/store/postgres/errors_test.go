package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/store"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("noop", nil))
	assert.ErrorIs(t, classify("get trip", pgx.ErrNoRows), store.ErrNotFound)
	assert.True(t, apperr.IsTransient(classify("search", context.DeadlineExceeded)))

	unique := &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "users_email_key"}
	assert.ErrorIs(t, classify("create user", unique), store.ErrConflict)

	check := &pgconn.PgError{Code: codeCheckViolation, Message: "new row violates check constraint"}
	assert.True(t, apperr.Is(classify("create trip", check), apperr.KindValidation))

	deadlock := &pgconn.PgError{Code: codeDeadlock}
	assert.True(t, apperr.IsTransient(classify("resolve request", deadlock)))

	refused := fmt.Errorf("failed to connect: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	assert.True(t, apperr.IsTransient(classify("search", refused)))

	other := errors.New("syntax error")
	err := classify("list", other)
	assert.ErrorIs(t, err, other)
	assert.False(t, apperr.IsTransient(err))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\d`, escapeLike(`c:\d`))
	assert.Equal(t, "Manali", escapeLike("Manali"))
}
