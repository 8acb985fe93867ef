// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ResetToken is the single live password reset token of a user.
// Token holds the signed token string; its expiry lives inside the token.
type ResetToken struct { //nolint:govet // fieldalignment: readability over optimization
	UserID    string    `db:"user_id" bson:"user_id" json:"user_id"`
	Token     string    `db:"token" bson:"token" json:"-"`
	CreatedAt time.Time `db:"created_at" bson:"created_at" json:"created_at"`
}
