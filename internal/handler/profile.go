package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studentdesk/internal/logging"
	"github.com/iliyamo/studentdesk/internal/middleware"
	q "github.com/iliyamo/studentdesk/internal/queue"
	"github.com/iliyamo/studentdesk/internal/repository"
	queue_publisher "github.com/iliyamo/studentdesk/internal/service"
	"github.com/iliyamo/studentdesk/internal/utils"
)

// ProfileHandler serves the authenticated account endpoints. Every write
// goes to the store first and then evicts the cached profile.
type ProfileHandler struct {
	Users    UserStore
	Profiles ProfileCache
	Events   queue_publisher.Publisher
	Log      logging.Logger
}

func NewProfileHandler(users UserStore, profiles ProfileCache, events queue_publisher.Publisher, log logging.Logger) *ProfileHandler {
	if events == nil {
		events = queue_publisher.Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &ProfileHandler{Users: users, Profiles: profiles, Events: events, Log: log}
}

const msgSamePassword = "New Password should not be same as old password!"

type updatePasswordReq struct {
	UserID      string `json:"userId" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type verifyPasswordReq struct {
	Password string `json:"password" validate:"required"`
}

// Profile returns the caller's profile, from the cache when possible. The
// X-Cache header tells which.
func (h *ProfileHandler) Profile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, hit, err := h.Profiles.GetProfile(ctx, middleware.UserID(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if hit {
		c.Response().Header().Set("X-Cache", "HIT")
	} else {
		c.Response().Header().Set("X-Cache", "MISS")
	}
	return c.JSON(http.StatusOK, p)
}

// Update replaces all profile fields of the caller.
func (h *ProfileHandler) Update(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Please add all required values in the request body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.Log, err)
	}
	id := middleware.UserID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, id, req.fields())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.afterWrite(ctx, q.EventUserProfileUpdated, id, u.Username)

	return c.JSON(http.StatusOK, echo.Map{"user": u.Profile()})
}

// UpdatePassword changes the caller's password. userId in the body must be
// the token subject. Re-submitting the current password is answered with
// 200 and a message, leaving the stored hash untouched.
func (h *ProfileHandler) UpdatePassword(c echo.Context) error {
	var req updatePasswordReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId and newPassword are required"})
	}
	id := middleware.UserID(c)
	if strings.TrimSpace(req.UserID) != id {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	// the current password gets the same-password answer even if it would
	// fail today's strength rule
	u, found, err := h.Users.FindByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !found {
		return writeError(c, h.Log, repository.ErrNotFound)
	}
	if utils.VerifyPassword(u.PasswordHash, req.NewPassword) {
		return c.JSON(http.StatusOK, echo.Map{"msg": msgSamePassword})
	}
	if utils.IsWeakPassword(req.NewPassword) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": msgWeakPassword})
	}

	err = h.Users.UpdatePassword(ctx, id, req.NewPassword)
	if errors.Is(err, repository.ErrSamePassword) {
		return c.JSON(http.StatusOK, echo.Map{"msg": msgSamePassword})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.afterWrite(ctx, q.EventUserPasswordChanged, id, middleware.Username(c))

	return c.JSON(http.StatusOK, echo.Map{"msg": "Password updated successfully"})
}

// ClearCache evicts the caller's cached profile.
func (h *ProfileHandler) ClearCache(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Profiles.Invalidate(ctx, middleware.UserID(c)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "cache cleared"})
}

// ChangePhone stores a new phone number for the caller.
func (h *ProfileHandler) ChangePhone(c echo.Context) error {
	var req phoneReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ph is required"})
	}
	id := middleware.UserID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Users.UpdatePhone(ctx, id, req.Phone); err != nil {
		return writeError(c, h.Log, err)
	}
	h.afterWrite(ctx, q.EventUserPhoneChanged, id, middleware.Username(c))

	return c.JSON(http.StatusOK, echo.Map{"msg": "Phone number updated"})
}

// VerifyPassword checks the caller's current password, e.g. before a
// sensitive settings change.
func (h *ProfileHandler) VerifyPassword(c echo.Context) error {
	var req verifyPasswordReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, found, err := h.Users.FindByID(ctx, middleware.UserID(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !found || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Password incorrect! Please try again."})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Password verified successfully!"})
}

// afterWrite evicts the cached profile and announces the change. Neither
// step can undo the committed write, so failures are only logged; a stale
// entry then lives until its TTL.
func (h *ProfileHandler) afterWrite(ctx context.Context, typ, userID, username string) {
	if err := h.Profiles.Invalidate(ctx, userID); err != nil {
		h.Log.Error(ctx, "profile cache not invalidated", "user_id", userID, "err", err)
	}
	publish(ctx, h.Events, h.Log, typ, userID, username)
}
