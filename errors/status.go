package errors

import (
	stderrors "errors"
	"net/http"
)

// HTTPStatus maps a service error to the status code returned by the REST layer.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrNotFound), stderrors.Is(err, ErrInvalidSession):
		return http.StatusNotFound
	case stderrors.Is(err, ErrSessionClosed), stderrors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
