// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-auth-api/internal/auth"
	"codeberg.org/oliverandrich/go-auth-api/internal/handlers"
	"codeberg.org/oliverandrich/go-auth-api/internal/repository"
	authsvc "codeberg.org/oliverandrich/go-auth-api/internal/services/auth"
	"codeberg.org/oliverandrich/go-auth-api/internal/services/token"
	"codeberg.org/oliverandrich/go-auth-api/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testResetURL = "http://localhost:3000/reset-password"

type stubNotifier struct {
	url string
	err error
}

func (n *stubNotifier) SendPasswordReset(_ context.Context, _, resetURL string) error {
	if n.err != nil {
		return n.err
	}
	n.url = resetURL
	return nil
}

type authEnv struct {
	e        *echo.Echo
	repo     *repository.Repository
	tokens   *token.Issuer
	notifier *stubNotifier
	h        *handlers.AuthHandlers
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	tokens, err := token.NewIssuer("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	notifier := &stubNotifier{}
	svc, err := authsvc.NewService(repo, tokens, notifier, testResetURL,
		authsvc.WithHasher(authsvc.BcryptHasher{Cost: bcrypt.MinCost}))
	require.NoError(t, err)

	return &authEnv{
		e:        echo.New(),
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		h:        handlers.NewAuth(svc),
	}
}

func (env *authEnv) post(path, body string) (echo.Context, *httptest.ResponseRecorder) {
	return testutil.NewEchoContext(env.e, http.MethodPost, path, strings.NewReader(body))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterHandler(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := env.post("/api/auth/register", `{"name":"A","email":"a@x.com","password":"secret1"}`)
	require.NoError(t, env.h.Register(c))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	userID, err := env.tokens.VerifySession(body["token"].(string))
	require.NoError(t, err)

	user, err := env.repo.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRegisterHandler_Validation(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := env.post("/api/auth/register", `{"email":"a@x.com","password":"123"}`)
	require.NoError(t, env.h.Register(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{
		"msg": "Name is required",
		"errors": [
			{"msg": "Name is required", "param": "name"},
			{"msg": "Please enter a password with 6 or more characters", "param": "password"}
		]
	}`, rec.Body.String())
}

func TestRegisterHandler_Conflict(t *testing.T) {
	env := newAuthEnv(t)
	testutil.NewTestUser(t, env.repo, "a@x.com")

	c, rec := env.post("/api/auth/register", `{"name":"A","email":"a@x.com","password":"secret1"}`)
	require.NoError(t, env.h.Register(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"msg":"User already exists","errors":[{"msg":"User already exists"}]}`, rec.Body.String())
}

func TestRegisterHandler_MalformedBody(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := env.post("/api/auth/register", `{"name":`)
	require.NoError(t, env.h.Register(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"msg":"Invalid request body"}`, rec.Body.String())
}

func TestLoginHandler(t *testing.T) {
	env := newAuthEnv(t)
	user := testutil.NewTestUser(t, env.repo, "a@x.com")

	c, rec := env.post("/api/auth/login", `{"email":"a@x.com","password":"`+testutil.TestPassword+`"}`)
	require.NoError(t, env.h.Login(c))

	require.Equal(t, http.StatusOK, rec.Code)
	userID, err := env.tokens.VerifySession(decode(t, rec)["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	env := newAuthEnv(t)
	testutil.NewTestUser(t, env.repo, "a@x.com")

	var bodies []string
	for _, body := range []string{
		`{"email":"a@x.com","password":"wrong-password"}`,
		`{"email":"nobody@x.com","password":"secret1"}`,
	} {
		c, rec := env.post("/api/auth/login", body)
		require.NoError(t, env.h.Login(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}

	assert.JSONEq(t, `{"msg":"Invalid Credentials","errors":[{"msg":"Invalid Credentials"}]}`, bodies[0])
	assert.Equal(t, bodies[0], bodies[1])
}

func TestForgotPasswordHandler(t *testing.T) {
	env := newAuthEnv(t)
	testutil.NewTestUser(t, env.repo, "a@x.com")

	c, rec := env.post("/api/auth/forgot-password", `{"email":"a@x.com"}`)
	require.NoError(t, env.h.ForgotPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"msg":"Email sent"}`, rec.Body.String())
	assert.True(t, strings.HasPrefix(env.notifier.url, testResetURL+"/"))
}

func TestForgotPasswordHandler_NotFound(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := env.post("/api/auth/forgot-password", `{"email":"nobody@x.com"}`)
	require.NoError(t, env.h.ForgotPassword(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"msg":"User not found"}`, rec.Body.String())
}

func TestForgotPasswordHandler_DeliveryFailure(t *testing.T) {
	env := newAuthEnv(t)
	user := testutil.NewTestUser(t, env.repo, "a@x.com")
	env.notifier.err = errors.New("smtp down")

	c, rec := env.post("/api/auth/forgot-password", `{"email":"a@x.com"}`)
	require.NoError(t, env.h.ForgotPassword(c))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"msg":"Email could not be sent"}`, rec.Body.String())

	count, err := env.repo.CountResetTokens(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func (env *authEnv) reset(t *testing.T, resetToken, body string) *httptest.ResponseRecorder {
	t.Helper()
	c, rec := env.post("/api/auth/reset-password/"+resetToken, body)
	c.SetPath("/api/auth/reset-password/:token")
	c.SetParamNames("token")
	c.SetParamValues(resetToken)
	require.NoError(t, env.h.ResetPassword(c))
	return rec
}

func TestResetPasswordHandler(t *testing.T) {
	env := newAuthEnv(t)
	testutil.NewTestUser(t, env.repo, "a@x.com")

	c, _ := env.post("/api/auth/forgot-password", `{"email":"a@x.com"}`)
	require.NoError(t, env.h.ForgotPassword(c))
	resetToken := strings.TrimPrefix(env.notifier.url, testResetURL+"/")

	rec := env.reset(t, resetToken, `{"password":"newpass1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"msg":"Password reset successful"}`, rec.Body.String())

	rec = env.reset(t, resetToken, `{"password":"newpass2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"msg":"Invalid token"}`, rec.Body.String())
}

func TestResetPasswordHandler_BadToken(t *testing.T) {
	env := newAuthEnv(t)

	rec := env.reset(t, "not-a-jwt", `{"password":"newpass1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"msg":"Invalid or expired token"}`, rec.Body.String())
}

func TestProfileHandler(t *testing.T) {
	env := newAuthEnv(t)
	user := testutil.NewTestUser(t, env.repo, "a@x.com")

	c, rec := testutil.NewEchoContext(env.e, http.MethodGet, "/api/auth/user", nil)
	c.SetRequest(c.Request().WithContext(auth.WithUserID(c.Request().Context(), user.ID)))
	require.NoError(t, env.h.Profile(c))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, user.ID, body["id"])
	assert.Equal(t, "a@x.com", body["email"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "password_hash")
}

func TestProfileHandler_UserGone(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := testutil.NewEchoContext(env.e, http.MethodGet, "/api/auth/user", nil)
	c.SetRequest(c.Request().WithContext(auth.WithUserID(c.Request().Context(), "deleted-user")))
	require.NoError(t, env.h.Profile(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"msg":"User not found"}`, rec.Body.String())
}

func TestProfileHandler_Anonymous(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := testutil.NewEchoContext(env.e, http.MethodGet, "/api/auth/user", nil)
	require.NoError(t, env.h.Profile(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
