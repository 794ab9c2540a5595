package handler // handler defines http handlers

import (
	"errors"   // errors.Is maps error kinds to status codes
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // echo defines request context types
	"go.uber.org/zap"             // unexpected errors are logged before answering 500

	"github.com/iliyamo/event-seat-reservation/internal/repository" // error kinds shared with the services
)

// statusOf maps a repository error kind to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, repository.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError answers {"error": reason}.  Errors without a kind are logged
// and reported with the generic fallback message.
func respondError(c echo.Context, log *zap.Logger, err error, fallback string) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		if log == nil {
			log = zap.L()
		}
		log.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(status, echo.Map{"error": fallback})
	}
	return c.JSON(status, echo.Map{"error": repository.Reason(err, err.Error())})
}
