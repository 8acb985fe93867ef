// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// User is an account that can log in with email and password.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID           string    `db:"id" bson:"_id" json:"id"`
	Name         string    `db:"name" bson:"name" json:"name"`
	Email        string    `db:"email" bson:"email" json:"email"`
	PasswordHash string    `db:"password_hash" bson:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" bson:"updated_at" json:"updated_at"`
}
