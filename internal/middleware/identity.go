package middleware

// identity.go holds the context keys JWTAuth fills in and the accessors
// handlers and the rate limiter use to read them back.

import "github.com/labstack/echo/v4"

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// UserID returns the authenticated user's id, or "" on public routes.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok {
		return s
	}
	return ""
}

// Username returns the username carried by the token, if any.
func Username(c echo.Context) string {
	if s, ok := c.Get(ContextUsername).(string); ok {
		return s
	}
	return ""
}

// currentUserID is UserID with a placeholder for anonymous callers, used
// in rate limit keys.
func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
