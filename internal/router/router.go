// Package router builds the Echo instance and registers the API routes.
package router

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/studentdesk/internal/handler"
	"github.com/iliyamo/studentdesk/internal/logging"
	"github.com/iliyamo/studentdesk/internal/middleware"
)

// APIPrefix is the mount point of every account endpoint.
const APIPrefix = "/api/v1"

// New returns an Echo instance with panic recovery, request ids, request
// logging and the request validator installed.
func New(log logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Warn(c.Request().Context(), "request failed", append(args, "err", v.Error)...)
				return nil
			}
			log.Info(c.Request().Context(), "request", args...)
			return nil
		},
	}))
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	e.RouteNotFound("/*", NotFound)
	if ready != nil {
		e.GET("/readyz", ready.Ready)
	}
}

// RegisterAuth registers the endpoints that work without a session:
// registration, login, token issuance and account recovery. They are the
// ones worth guessing against, so every one of them runs behind limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, r *handler.RecoveryHandler, limiter echo.MiddlewareFunc) {
	g := e.Group(APIPrefix)
	mw := chain(limiter)

	g.POST("/login", a.Login, mw...)
	g.POST("/register", a.Register, mw...)
	g.POST("/regauth", a.RegAuth, mw...)
	g.POST("/giveToken", a.GiveToken, mw...)
	g.POST("/giveTokenUsingPh", a.GiveTokenUsingPh, mw...)

	g.POST("/phoneauth", r.PhoneAuth, mw...)
	g.POST("/loginphauth", r.LoginPhAuth, mw...)
	g.POST("/forgotpasswordphauth", r.ForgotPasswordPhAuth, mw...)
	g.POST("/getq", r.GetQuestion, mw...)
	g.POST("/verifyanswer", r.VerifyAnswer, mw...)
}

// RegisterAccount registers the endpoints that act on the caller's own
// account. All of them require a bearer token; limiter runs after
// authentication so it can key on the user.
func RegisterAccount(e *echo.Echo, p *handler.ProfileHandler, tokens middleware.TokenVerifier, limiter echo.MiddlewareFunc) {
	g := e.Group(APIPrefix)
	mw := chain(middleware.JWTAuth(tokens), limiter)

	g.GET("/profile", p.Profile, mw...)
	g.PATCH("/update", p.Update, mw...)
	g.POST("/update-password", p.UpdatePassword, mw...)
	g.POST("/clear-cache", p.ClearCache, mw...)
	g.POST("/changeph", p.ChangePhone, mw...)
	g.POST("/verifypassword", p.VerifyPassword, mw...)
}

// chain drops nil entries. Middleware goes on the routes, not Group.Use:
// a group with middleware installs its own catch-all under APIPrefix.
func chain(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mw))
	for _, m := range mw {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// NotFound answers unknown routes in the same JSON shape as the handlers.
func NotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
}
