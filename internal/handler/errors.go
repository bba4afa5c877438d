package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studentdesk/internal/cache"
	"github.com/iliyamo/studentdesk/internal/logging"
	"github.com/iliyamo/studentdesk/internal/repository"
	"github.com/iliyamo/studentdesk/internal/utils"
)

const (
	msgInvalidCredentials = "Invalid username or password"
	msgUsernameTaken      = "Username already in use. Please choose a different one"
	msgPhoneTaken         = "This phone number is already linked to an existing account. Please sign in."
	msgWeakPassword       = "Password does not meet the strength requirements."
	msgInternal           = "internal server error"
)

// writeError maps store, cache and token errors onto HTTP responses.
// Anything unrecognised is logged and answered with a generic 500.
func writeError(c echo.Context, log logging.Logger, err error) error {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrUsernameTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": msgUsernameTaken})
	case errors.Is(err, repository.ErrPhoneTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": msgPhoneTaken})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, utils.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	ctx := c.Request().Context()
	switch {
	case errors.Is(err, repository.ErrStoreUnavailable):
		log.Error(ctx, "store unavailable", "path", c.Path(), "err", err)
	case errors.Is(err, cache.ErrCacheUnavailable):
		log.Error(ctx, "cache unavailable", "path", c.Path(), "err", err)
	default:
		log.Error(ctx, "request failed", "path", c.Path(), "err", err)
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msgInternal})
}
