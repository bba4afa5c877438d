package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studentdesk/internal/cache"
	"github.com/iliyamo/studentdesk/internal/logging"
	"github.com/iliyamo/studentdesk/internal/model"
	"github.com/iliyamo/studentdesk/internal/utils"
)

const msgRecoveryStarted = "If an account is registered with this phone number, continue with your security question."

// RecoveryHandler serves the unauthenticated phone and security question
// endpoints. None of them reveals whether an account exists: unknown
// identifiers get a decoy answer of the same shape, derived from the
// identifier so that repeated calls agree.
type RecoveryHandler struct {
	Users  UserStore
	Grants GrantStore
	Log    logging.Logger

	decoyKey []byte
	guard    timingGuard
}

// NewRecoveryHandler keys the decoys with decoyKey, normally the token
// signing secret.
func NewRecoveryHandler(users UserStore, grants GrantStore, log logging.Logger, decoyKey string, bcryptCost int) *RecoveryHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &RecoveryHandler{
		Users:    users,
		Grants:   grants,
		Log:      log,
		decoyKey: []byte("decoy:" + decoyKey),
		guard:    timingGuard{cost: bcryptCost},
	}
}

type verifyAnswerReq struct {
	Phone  string `json:"ph" validate:"required"`
	Answer string `json:"answer" validate:"required"`
}

// PhoneAuth reports whether a phone number is free for registration.
func (h *RecoveryHandler) PhoneAuth(c echo.Context) error {
	var req phoneReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ph is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	_, found, err := h.Users.FindByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": !found})
}

// LoginPhAuth returns the masked phone number on file for a username.
func (h *RecoveryHandler) LoginPhAuth(c echo.Context) error {
	var req usernameReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username is required"})
	}
	username := strings.TrimSpace(req.Username)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, found, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	masked := utils.DecoyPhone(h.decoyKey, username)
	if found {
		masked = utils.MaskPhone(u.Phone)
	}
	return c.JSON(http.StatusOK, echo.Map{"ph": masked})
}

// ForgotPasswordPhAuth starts recovery for a phone number. The answer is
// the same whether or not the number is registered.
func (h *RecoveryHandler) ForgotPasswordPhAuth(c echo.Context) error {
	var req phoneReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ph is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	// the lookup keeps the store round trip in both cases
	if _, _, err := h.Users.FindByPhone(ctx, strings.TrimSpace(req.Phone)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": msgRecoveryStarted})
}

// GetQuestion returns the security question id for a phone number.
func (h *RecoveryHandler) GetQuestion(c echo.Context) error {
	var req phoneReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ph is required"})
	}
	phone := strings.TrimSpace(req.Phone)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, found, err := h.Users.FindByPhone(ctx, phone)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	question := model.SecurityQuestionIDs[utils.DecoyIndex(h.decoyKey, "question:"+phone, len(model.SecurityQuestionIDs))]
	if found {
		question = u.SecurityQuestion
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": question})
}

// VerifyAnswer checks a security answer. A correct answer returns a
// recovery grant that /giveTokenUsingPh redeems together with the phone.
func (h *RecoveryHandler) VerifyAnswer(c echo.Context) error {
	var req verifyAnswerReq
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ph and answer are required"})
	}
	phone := strings.TrimSpace(req.Phone)
	answer := utils.NormalizeAnswer(req.Answer)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, found, err := h.Users.FindByPhone(ctx, phone)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !found {
		h.guard.compare(answer)
		return c.JSON(http.StatusOK, echo.Map{"correct": false})
	}
	if !utils.VerifyPassword(u.SecurityAnswerHash, answer) {
		return c.JSON(http.StatusOK, echo.Map{"correct": false})
	}

	grant, err := h.Grants.Issue(ctx, cache.GrantRecovery, phone)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"correct": true, "grant": grant})
}
