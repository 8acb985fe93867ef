// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/go-auth-api/internal/ctxkeys"
)

// WithUserID returns a copy of ctx carrying the authenticated user's id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxkeys.UserID{}, userID)
}

// GetUserID returns the authenticated user's id from the context, or "" if
// not authenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxkeys.UserID{}).(string); ok {
		return id
	}
	return ""
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}
