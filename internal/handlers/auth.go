// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/go-auth-api/internal/auth"
	authsvc "codeberg.org/oliverandrich/go-auth-api/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for authentication.
type AuthHandlers struct {
	svc *authsvc.Service
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *authsvc.Service) *AuthHandlers {
	return &AuthHandlers{svc: svc}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Msg string `json:"msg"`
}

// Register creates an account and returns a session token.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badRequestBody(c)
	}

	signed, err := h.svc.Register(c.Request().Context(), authsvc.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{Token: signed})
}

// Login returns a session token for valid credentials.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequestBody(c)
	}

	signed, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{Token: signed})
}

// ForgotPassword mails a reset link to a registered address.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequestBody(c)
	}

	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Msg: "Email sent"})
}

// ResetPassword sets a new password using the token from the path.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequestBody(c)
	}

	if err := h.svc.ResetPassword(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Msg: "Password reset successful"})
}

// Profile returns the authenticated user.
func (h *AuthHandlers) Profile(c echo.Context) error {
	userID := auth.GetUserID(c.Request().Context())
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, messageResponse{Msg: "No token, authorization denied"})
	}

	user, err := h.svc.Profile(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, user)
}
