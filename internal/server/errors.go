package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/storybook/internal/pipeline"
	"github.com/jonathan/storybook/internal/session"
	"github.com/jonathan/storybook/internal/store"
)

// ErrMissingSession is returned when a request needs a session the client did not send
var ErrMissingSession = errors.New("no active session: send the storybook_session cookie, X-Session-ID header or session_id parameter")

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrMissingSession),
		errors.Is(err, pipeline.ErrEmptyOutline),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, session.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrRejected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
