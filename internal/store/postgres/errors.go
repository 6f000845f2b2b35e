package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/store"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

// classify maps pgx errors onto store sentinels or apperr kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperr.Transient(op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, store.ErrConflict)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, store.ErrNotFound)
		case codeCheckViolation:
			return apperr.Validation(pgErr.Message)
		case codeSerialization, codeDeadlock:
			return apperr.Transient(op, err)
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return apperr.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
