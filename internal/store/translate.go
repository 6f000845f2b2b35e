package store

import (
	"context"
	"errors"

	"github.com/yatri-app/backend/internal/apperr"
)

// Translate turns a store error into an apperr kind. notFound is the user-facing
// message used for ErrNotFound. Already classified errors pass through.
func Translate(op string, err error, notFound string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, ErrConflict):
		return apperr.Conflict("the record was changed by someone else")
	case errors.Is(err, ErrForbidden):
		return apperr.Forbidden("you are not allowed to do that")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Transient(op, err)
	}
	return apperr.Internal(op, err)
}
