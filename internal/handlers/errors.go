// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	authsvc "codeberg.org/oliverandrich/go-auth-api/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Msg    string               `json:"msg"`
	Errors []authsvc.FieldError `json:"errors,omitempty"`
}

// errorResponse maps service errors to status codes and bodies. Anything
// unrecognized is logged and reported as a generic 500.
func errorResponse(c echo.Context, err error) error {
	var verr *authsvc.ValidationError

	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorBody{
			Msg:    verr.Fields[0].Msg,
			Errors: verr.Fields,
		})
	case errors.Is(err, authsvc.ErrUserExists):
		return c.JSON(http.StatusBadRequest, listed("User already exists"))
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return c.JSON(http.StatusBadRequest, listed("Invalid Credentials"))
	case errors.Is(err, authsvc.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Msg: "User not found"})
	case errors.Is(err, authsvc.ErrInvalidToken):
		return c.JSON(http.StatusBadRequest, errorBody{Msg: "Invalid or expired token"})
	case errors.Is(err, authsvc.ErrResetTokenNotFound):
		return c.JSON(http.StatusBadRequest, errorBody{Msg: "Invalid token"})
	case errors.Is(err, authsvc.ErrEmailDelivery):
		return c.JSON(http.StatusInternalServerError, errorBody{Msg: "Email could not be sent"})
	default:
		slog.Error("request_failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, errorBody{Msg: "Server error"})
	}
}

func listed(msg string) errorBody {
	return errorBody{Msg: msg, Errors: []authsvc.FieldError{{Msg: msg}}}
}

func badRequestBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, errorBody{Msg: "Invalid request body"})
}

// HTTPErrorHandler renders errors that reach echo as JSON.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if code < http.StatusInternalServerError {
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
	}

	if code >= http.StatusInternalServerError {
		slog.Error("unhandled_error", "path", c.Request().URL.Path, "error", err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, errorBody{Msg: msg})
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}
