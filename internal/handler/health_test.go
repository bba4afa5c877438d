package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReady(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	cases := []struct {
		name   string
		checks map[string]CheckFunc
		status int
		body   string
	}{
		{"all up", map[string]CheckFunc{"mongo": up, "redis": up}, http.StatusOK, `{"checks":{"mongo":"up","redis":"up"}}`},
		{"redis down", map[string]CheckFunc{"mongo": up, "redis": down}, http.StatusServiceUnavailable, `{"checks":{"mongo":"up","redis":"down"}}`},
		{"no checks", map[string]CheckFunc{}, http.StatusOK, `{"checks":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec)

			h := &ReadyHandler{Checks: tc.checks}
			require.NoError(t, h.Ready(c))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)

	require.NoError(t, Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
