// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"codeberg.org/oliverandrich/go-auth-api/internal/handlers"
	"codeberg.org/oliverandrich/go-auth-api/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	h := handlers.New(repo)

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/health", nil)
	err := h.Health(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_NoStore(t *testing.T) {
	h := handlers.New(nil)

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/health", nil)
	require.NoError(t, h.Health(c))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_StoreDown(t *testing.T) {
	h := handlers.New(failingPinger{})

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/health", nil)
	require.NoError(t, h.Health(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestDashboard(t *testing.T) {
	h := handlers.New(nil)

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/api/dashboard", nil)
	require.NoError(t, h.Dashboard(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"msg":"Dashboard data accessed successfully"}`, rec.Body.String())
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     int
		expected string
	}{
		{"not found", echo.ErrNotFound, http.StatusNotFound, `{"msg":"Not Found"}`},
		{"method not allowed", echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, `{"msg":"Method Not Allowed"}`},
		{"too large", echo.ErrStatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge, `{"msg":"Request Entity Too Large"}`},
		{"custom message", echo.NewHTTPError(http.StatusBadRequest, "bad input"), http.StatusBadRequest, `{"msg":"bad input"}`},
		{"non-string message", echo.NewHTTPError(http.StatusConflict, map[string]string{"x": "y"}), http.StatusConflict, `{"msg":"Conflict"}`},
		{"plain error", errors.New("db exploded"), http.StatusInternalServerError, `{"msg":"Server error"}`},
		{"internal http error", echo.NewHTTPError(http.StatusBadGateway, "upstream details"), http.StatusBadGateway, `{"msg":"Server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/x", nil)

			handlers.HTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.expected, rec.Body.String())
		})
	}
}

func TestHTTPErrorHandler_Head(t *testing.T) {
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodHead, "/x", nil)

	handlers.HTTPErrorHandler(echo.ErrNotFound, c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}
