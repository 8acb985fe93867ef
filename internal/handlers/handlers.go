// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON HTTP handlers.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains the handlers that are not part of the auth flow.
type Handlers struct {
	store Pinger
}

// New creates a new Handlers instance.
func New(store Pinger) *Handlers {
	return &Handlers{store: store}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			slog.Error("health_check_failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Dashboard acknowledges an authenticated request.
func (h *Handlers) Dashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Msg: "Dashboard data accessed successfully"})
}
