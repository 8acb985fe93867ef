// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies the signed JWTs used for sessions and
// password reset links.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose distinguishes session tokens from reset tokens.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "reset"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrEmptySecret  = errors.New("signing secret is required")
)

// Claims are the JWT claims carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"purpose"`
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewIssuer creates an issuer. Both lifetimes must be positive.
func NewIssuer(secret string, sessionTTL, resetTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if sessionTTL <= 0 || resetTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive: session=%s reset=%s", sessionTTL, resetTTL)
	}
	return &Issuer{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}, nil
}

// IssueSession returns a session token for the user.
func (i *Issuer) IssueSession(userID string) (string, error) {
	return i.issue(userID, PurposeSession, i.sessionTTL)
}

// IssueReset returns a password reset token for the user.
func (i *Issuer) IssueReset(userID string) (string, error) {
	return i.issue(userID, PurposeReset, i.resetTTL)
}

// VerifySession checks a session token and returns its user id.
func (i *Issuer) VerifySession(raw string) (string, error) {
	return i.verify(raw, PurposeSession)
}

// VerifyReset checks a reset token and returns its user id.
func (i *Issuer) VerifyReset(raw string) (string, error) {
	return i.verify(raw, PurposeReset)
}

func (i *Issuer) issue(userID string, purpose Purpose, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("failed to issue %s token: empty subject", purpose)
	}

	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}
	return signed, nil
}

func (i *Issuer) verify(raw string, purpose Purpose) (string, error) {
	if raw == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", errors.Join(ErrInvalidToken, err)
	}

	if claims.Purpose != purpose || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
