package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe. It returns a plain "ok".
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// ReadyHandler runs every named check and answers 503 if any fails.
type ReadyHandler struct {
	Checks map[string]CheckFunc
}

func (h *ReadyHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			result[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "up"
	}
	return c.JSON(status, echo.Map{"checks": result})
}
