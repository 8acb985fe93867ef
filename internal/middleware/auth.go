// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds echo middleware for the API.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/go-auth-api/internal/auth"
	"github.com/labstack/echo/v4"
)

// HeaderAuthToken is the fallback header carrying a bare session token.
const HeaderAuthToken = "x-auth-token"

// Authenticator resolves a session token to a user id.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// RequireAuth rejects requests without a valid session token with 401 and
// stores the user id of valid ones in the request context.
func RequireAuth(authenticator Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := TokenFromRequest(c.Request())
			if raw == "" {
				return unauthorized(c, "No token, authorization denied")
			}

			userID, err := authenticator.Authenticate(raw)
			if err != nil {
				slog.Debug("auth_rejected", "path", c.Path(), "error", err)
				return unauthorized(c, "Token is not valid")
			}

			ctx := auth.WithUserID(c.Request().Context(), userID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// TokenFromRequest reads a bearer token from the Authorization header, or
// the x-auth-token header when Authorization carries no bearer token.
func TokenFromRequest(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderAuthToken))
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"msg": msg})
}
