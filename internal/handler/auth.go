package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studentdesk/internal/cache"
	"github.com/iliyamo/studentdesk/internal/logging"
	"github.com/iliyamo/studentdesk/internal/model"
	q "github.com/iliyamo/studentdesk/internal/queue"
	queue_publisher "github.com/iliyamo/studentdesk/internal/service"
	"github.com/iliyamo/studentdesk/internal/utils"
)

// AuthHandler serves registration, login and token issuance.
type AuthHandler struct {
	Users  UserStore
	Tokens TokenIssuer
	Grants GrantStore
	Events queue_publisher.Publisher
	Log    logging.Logger

	guard timingGuard
}

func NewAuthHandler(users UserStore, tokens TokenIssuer, grants GrantStore, events queue_publisher.Publisher, log logging.Logger, bcryptCost int) *AuthHandler {
	if events == nil {
		events = queue_publisher.Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &AuthHandler{Users: users, Tokens: tokens, Grants: grants, Events: events, Log: log, guard: timingGuard{cost: bcryptCost}}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerReq struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"ph" validate:"required"`
	ProfileRequest
}

// ProfileRequest is the body of PATCH /update and the profile part of
// POST /register.
type ProfileRequest struct {
	FullName         string `json:"fullname" validate:"required"`
	Gender           string `json:"gender" validate:"required,oneof=Male Female 'Prefer not to say'"`
	Nationality      string `json:"nationality" validate:"required,oneof=Chinese Indian Malaysian"`
	Profession       string `json:"profession" validate:"required"`
	HomeAddress      string `json:"homeaddress" validate:"required"`
	HomePostal       string `json:"homepostal" validate:"required,len=6,numeric"`
	SecurityQuestion string `json:"securityq" validate:"required,oneof=firstPet birthCity childhoodNickname favoriteTeacher memorableDate"`
	SecurityAnswer   string `json:"securityans" validate:"required"`
}

func (p ProfileRequest) fields() model.ProfileFields {
	return model.ProfileFields{
		FullName:         p.FullName,
		Gender:           p.Gender,
		Nationality:      p.Nationality,
		Profession:       p.Profession,
		HomeAddress:      p.HomeAddress,
		HomePostal:       p.HomePostal,
		SecurityQuestion: p.SecurityQuestion,
		SecurityAnswer:   p.SecurityAnswer,
	}
}

type regAuthReq struct {
	Username        string `json:"username" validate:"required,max=50"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

type usernameReq struct {
	Username string `json:"username" validate:"required"`
}

type usernameGrantReq struct {
	Username string `json:"username" validate:"required"`
	Grant    string `json:"grant"`
}

type phoneGrantReq struct {
	Phone string `json:"ph" validate:"required"`
	Grant string `json:"grant"`
}

type phoneReq struct {
	Phone string `json:"ph" validate:"required"`
}

type userPart struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

// Login verifies username and password. Unknown usernames and wrong
// passwords get the same 401. A successful login also returns a login
// grant that /giveToken can redeem once.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Provide username and password"})
	}
	req.Username = strings.TrimSpace(req.Username)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, found, err := h.Users.FindByUsername(ctx, req.Username)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !found {
		h.guard.compare(req.Password)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgInvalidCredentials})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgInvalidCredentials})
	}

	tok, err := h.Tokens.Issue(u.ID.Hex(), u.Username)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	resp := echo.Map{
		"token": tok.Token,
		"user":  userPart{ID: u.ID.Hex(), Username: u.Username, FullName: u.FullName},
	}
	if grant, err := h.Grants.Issue(ctx, cache.GrantLogin, u.Username); err != nil {
		h.Log.Warn(ctx, "login grant not stored", "user_id", u.ID.Hex(), "err", err)
	} else {
		resp["grant"] = grant
	}
	return c.JSON(http.StatusOK, resp)
}

// Register creates the account and returns a session token right away.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Please add all values in the request body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.Log, err)
	}
	if utils.IsWeakPassword(req.Password) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": msgWeakPassword})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, model.NewUser{
		Username:      req.Username,
		Password:      req.Password,
		Phone:         req.Phone,
		ProfileFields: req.fields(),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}

	tok, err := h.Tokens.Issue(u.ID.Hex(), u.Username)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	publish(ctx, h.Events, h.Log, q.EventUserRegistered, u.ID.Hex(), u.Username)

	return c.JSON(http.StatusCreated, echo.Map{"token": tok.Token})
}

// RegAuth is the first registration step: username availability, password
// strength and confirmation, in that order.
func (h *AuthHandler) RegAuth(c echo.Context) error {
	var req regAuthReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.Log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	_, found, err := h.Users.FindByUsername(ctx, req.Username)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if found {
		return c.JSON(http.StatusConflict, echo.Map{"error": msgUsernameTaken})
	}
	strength := utils.EvaluatePasswordStrength(req.Password)
	if utils.IsWeakPassword(req.Password) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": msgWeakPassword, "strength": strength})
	}
	if req.Password != req.ConfirmPassword {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Password and confirm password do not match."})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "", "strength": strength})
}

// GiveToken redeems the login grant returned by a successful Login.
func (h *AuthHandler) GiveToken(c echo.Context) error {
	var req usernameGrantReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username is required"})
	}
	req.Username = strings.TrimSpace(req.Username)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	return h.redeem(ctx, c, cache.GrantLogin, req.Username, req.Grant, h.Users.FindByUsername)
}

// GiveTokenUsingPh redeems the recovery grant returned by a correct
// security answer for the same phone.
func (h *AuthHandler) GiveTokenUsingPh(c echo.Context) error {
	var req phoneGrantReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ph is required"})
	}
	req.Phone = strings.TrimSpace(req.Phone)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	return h.redeem(ctx, c, cache.GrantRecovery, req.Phone, req.Grant, h.Users.FindByPhone)
}

type findFunc func(ctx context.Context, key string) (model.User, bool, error)

func (h *AuthHandler) redeem(ctx context.Context, c echo.Context, kind cache.GrantKind, subject, nonce string, find findFunc) error {
	ok, err := h.Grants.Consume(ctx, kind, subject, strings.TrimSpace(nonce))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	u, found, err := find(ctx, subject)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !found {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	tok, err := h.Tokens.Issue(u.ID.Hex(), u.Username)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Authentication successful", "token": tok.Token})
}
