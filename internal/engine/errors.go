package engine

import (
	"errors"

	"github.com/roach88/hubmapy/internal/errs"
)

// errClosed is returned by every Session call after Close.
var errClosed = errs.New(errs.CodeClosedSession, "session", "session is closed")

// categorize returns err unchanged if it already carries a category and
// otherwise wraps it with the fallback category.
func categorize(err error, fallback errs.Code, op, message string) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.Wrap(fallback, op, message, err)
}
