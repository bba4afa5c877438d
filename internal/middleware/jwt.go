package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studentdesk/internal/utils"
)

// TokenVerifier checks a raw bearer token. *utils.TokenIssuer satisfies it.
type TokenVerifier interface {
	Verify(raw string) (*utils.Claims, error)
}

// JWTAuth returns an Echo middleware that validates the Bearer session
// token and stores the subject and username in the request context, where
// handlers read them through UserID and Username. Every failure is a 401
// with the same body so a caller cannot tell an expired token from a forged
// one.
func JWTAuth(tokens TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			// the scheme is matched case-insensitively; the token itself
			// may still arrive quoted and is unwrapped by Verify
			if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(auth[7:])

			claims, err := tokens.Verify(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(ContextUserID, claims.UserID())
			c.Set(ContextUsername, claims.Username)
			return next(c)
		}
	}
}
