// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements registration, login and the password reset flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-auth-api/internal/metrics"
	"codeberg.org/oliverandrich/go-auth-api/internal/models"
	"codeberg.org/oliverandrich/go-auth-api/internal/repository"
	"codeberg.org/oliverandrich/go-auth-api/internal/services/token"
	"github.com/google/uuid"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrEmailDelivery      = errors.New("email could not be sent")
)

// Store persists users and reset tokens. Implementations report missing
// records with repository.ErrNotFound and uniqueness violations with
// repository.ErrDuplicate.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	ReplaceResetToken(ctx context.Context, userID, token string) error
	ConsumeResetToken(ctx context.Context, userID, token string) error
	DeleteUserResetTokens(ctx context.Context, userID string) error
}

// Notifier delivers password reset links.
type Notifier interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// RegisterParams holds the parameters for user registration.
type RegisterParams struct {
	Name     string `json:"name" validate:"required" msg:"Name is required"`
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"required,min=6" msg:"Please enter a password with 6 or more characters"`
}

type loginParams struct {
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"required" msg:"Password is required"`
}

type forgotParams struct {
	Email string `json:"email" validate:"required" msg:"Please include a valid email"`
}

type resetParams struct {
	Password string `json:"password" validate:"required,min=6" msg:"Please enter a password with 6 or more characters"`
}

// Option configures a Service.
type Option func(*Service)

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h Hasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

type Service struct {
	store    Store
	tokens   *token.Issuer
	notifier Notifier
	hasher   Hasher
	metrics  *metrics.Metrics
	resetURL string

	// dummyHash keeps unknown-email logins as slow as wrong-password logins
	dummyHash string
}

// NewService creates the auth service. resetURL is the base the reset token
// is appended to.
func NewService(store Store, tokens *token.Issuer, notifier Notifier, resetURL string, opts ...Option) (*Service, error) {
	s := &Service{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		hasher:   DefaultHasher(),
		resetURL: strings.TrimSuffix(resetURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}

	hash, err := s.hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	s.dummyHash = hash

	return s, nil
}

// Register creates a new user account and returns a session token for it.
func (s *Service) Register(ctx context.Context, params RegisterParams) (string, error) {
	signed, err := s.register(ctx, params)
	s.metrics.Observe(metrics.OpRegister, outcomeOf(err))
	return signed, err
}

func (s *Service) register(ctx context.Context, params RegisterParams) (string, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = normalizeEmail(params.Email)

	if err := validateStruct(params); err != nil {
		return "", err
	}

	_, err := s.store.GetUserByEmail(ctx, params.Email)
	if err == nil {
		slog.Warn("register_failed", "email", params.Email, "reason", "user_exists")
		return "", ErrUserExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := s.hashPassword(params.Password)
	if err != nil {
		return "", err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: passwordHash,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		// Lost a race against a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			slog.Warn("register_failed", "email", params.Email, "reason", "user_exists")
			return "", ErrUserExists
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	signed, err := s.tokens.IssueSession(user.ID)
	if err != nil {
		return "", err
	}

	slog.Info("register_success", "user_id", user.ID, "email", user.Email)

	return signed, nil
}

// Login checks the credentials and returns a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	signed, err := s.login(ctx, email, password)
	s.metrics.Observe(metrics.OpLogin, outcomeOf(err))
	return signed, err
}

func (s *Service) login(ctx context.Context, email, password string) (string, error) {
	params := loginParams{Email: normalizeEmail(email), Password: password}
	if err := validateStruct(params); err != nil {
		return "", err
	}

	user, err := s.store.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform a comparison
			_ = s.hasher.Compare(s.dummyHash, password)
			slog.Warn("login_failed", "email", params.Email, "reason", "user_not_found")
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		slog.Warn("login_failed", "email", params.Email, "reason", "invalid_password")
		return "", ErrInvalidCredentials
	}

	signed, err := s.tokens.IssueSession(user.ID)
	if err != nil {
		return "", err
	}

	slog.Info("login_success", "user_id", user.ID, "email", user.Email)

	return signed, nil
}

// ForgotPassword replaces the user's reset token with a fresh one and mails
// the reset link. When delivery fails no token is left behind.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	err := s.forgotPassword(ctx, email)
	s.metrics.Observe(metrics.OpForgotPassword, outcomeOf(err))
	return err
}

func (s *Service) forgotPassword(ctx context.Context, email string) error {
	params := forgotParams{Email: normalizeEmail(email)}
	if err := validateStruct(params); err != nil {
		return err
	}

	user, err := s.store.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("password_reset_unknown_email", "email", params.Email)
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	resetToken, err := s.tokens.IssueReset(user.ID)
	if err != nil {
		return err
	}

	if err := s.store.ReplaceResetToken(ctx, user.ID, resetToken); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := s.resetURL + "/" + resetToken
	if err := s.notifier.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		slog.Error("password_reset_email_failed", "user_id", user.ID, "error", err)
		s.metrics.ObserveEmail(false)

		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if derr := s.store.DeleteUserResetTokens(cleanupCtx, user.ID); derr != nil {
			return errors.Join(ErrEmailDelivery, fmt.Errorf("failed to delete reset token: %w", derr))
		}
		return fmt.Errorf("%w: %w", ErrEmailDelivery, err)
	}

	s.metrics.ObserveEmail(true)
	slog.Info("password_reset_requested", "user_id", user.ID)

	return nil
}

// ResetPassword sets a new password using a reset token. A token can be
// used once and only while it is the latest one issued for its user.
func (s *Service) ResetPassword(ctx context.Context, resetToken, password string) error {
	err := s.resetPassword(ctx, resetToken, password)
	s.metrics.Observe(metrics.OpResetPassword, outcomeOf(err))
	return err
}

func (s *Service) resetPassword(ctx context.Context, resetToken, password string) error {
	if err := validateStruct(resetParams{Password: password}); err != nil {
		return err
	}

	userID, err := s.tokens.VerifyReset(resetToken)
	if err != nil {
		slog.Warn("password_reset_failed", "reason", "invalid_token", "error", err)
		return ErrInvalidToken
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	if err := s.store.ConsumeResetToken(ctx, userID, resetToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("password_reset_failed", "user_id", userID, "reason", "token_not_found")
			return ErrResetTokenNotFound
		}
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	if err := s.store.UpdateUserPassword(ctx, userID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.store.DeleteUserResetTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete reset tokens: %w", err)
	}

	slog.Info("password_reset_success", "user_id", userID)

	return nil
}

// Profile returns the user with the given id.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Authenticate resolves a session token to its user id.
func (s *Service) Authenticate(raw string) (string, error) {
	userID, err := s.tokens.VerifySession(raw)
	if err != nil {
		s.metrics.Observe(metrics.OpAuthenticate, metrics.OutcomeDenied)
		return "", err
	}
	s.metrics.Observe(metrics.OpAuthenticate, metrics.OutcomeSuccess)
	return userID, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, ErrPasswordTooLong) {
		return "", &ValidationError{Fields: []FieldError{{
			Msg:   "Please enter a password with at most 72 characters",
			Param: "password",
		}}}
	}
	return hash, err
}

func outcomeOf(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &verr):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrUserExists):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrResetTokenNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return metrics.OutcomeDenied
	default:
		return metrics.OutcomeError
	}
}
