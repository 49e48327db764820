package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"todo-api/auth"
	"todo-api/domain"
)

var errInvalidBody = errors.New("invalid body")

// statusForError maps service errors onto HTTP statuses.
func statusForError(err error) int {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c echo.Context, err error) error {
	status := statusForError(err)
	resp := errorResponse{Error: err.Error()}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		resp.Field = ve.Field
	case status == http.StatusUnauthorized:
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	case status == http.StatusInternalServerError:
		h.log.WithError(err).WithField("route", c.Path()).Error("request failed")
		resp.Error = http.StatusText(status)
	}
	setRequestError(c, err)
	return c.JSON(status, resp)
}
