package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/session"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/usercontext"
)

func newAuthTestApp(t *testing.T, users *memoryUsers) *fiber.App {
	t.Helper()
	session.SetSessionStore(fibersession.New())
	t.Cleanup(func() { session.SetSessionStore(nil) })

	ac := NewAuthController(users, &memoryProviderAccounts{}, entitlements.DefaultTables())
	app := newTestApp(usercontext.UserContext{})
	app.Post("/api/auth/register", ac.HandleRegister)
	app.Post("/api/auth/login", ac.HandleLogin)
	app.Post("/api/auth/logout", ac.HandleLogout)
	return app
}

func TestHandleRegisterCreatesFreeAccount(t *testing.T) {
	users := newMemoryUsers()
	app := newAuthTestApp(t, users)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "  New@Example.com ",
		"password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Set-Cookie"))

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "new@example.com", user["email"])
	assert.Equal(t, "new", user["name"])
	assert.EqualValues(t, 250, user["credits"])
	assert.Equal(t, "free", user["subscriptionTier"])
	assert.Contains(t, user["image"], "https://www.gravatar.com/avatar/")

	stored, err := users.GetByEmail("new@example.com")
	require.NoError(t, err)
	assert.True(t, stored.CheckPassword("supersecret"))
	assert.NotNil(t, stored.LastLoginAt)
}

func TestHandleRegisterRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]string
		message string
	}{
		{"bad email", map[string]string{"email": "nope", "password": "supersecret"}, "A valid email is required"},
		{"short password", map[string]string{"email": "a@b.com", "password": "short"}, "Password must be between 8 and 72 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthTestApp(t, newMemoryUsers())
			resp := doJSON(t, app, http.MethodPost, "/api/auth/register", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.message, decodeBody(t, resp)["error"])
		})
	}
}

type stubCaptcha struct {
	tokens []string
}

func (s *stubCaptcha) Verify(ctx context.Context, token, remoteIP string) error {
	s.tokens = append(s.tokens, token)
	if token != "ok-token" {
		return errors.New("hCaptcha validation failed: invalid-input-response")
	}
	return nil
}

func TestHandleRegisterCaptcha(t *testing.T) {
	session.SetSessionStore(fibersession.New())
	t.Cleanup(func() { session.SetSessionStore(nil) })

	users := newMemoryUsers()
	captcha := &stubCaptcha{}
	ac := NewAuthController(users, &memoryProviderAccounts{}, entitlements.DefaultTables())
	ac.SetCaptcha(captcha)
	app := newTestApp(usercontext.UserContext{})
	app.Post("/api/auth/register", ac.HandleRegister)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/register", map[string]string{
		"email":        "bot@example.com",
		"password":     "supersecret",
		"captchaToken": "forged",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Captcha verification failed", decodeBody(t, resp)["error"])
	_, err := users.GetByEmail("bot@example.com")
	assert.Error(t, err)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/register", map[string]string{
		"email":        "human@example.com",
		"password":     "supersecret",
		"captchaToken": "ok-token",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"forged", "ok-token"}, captcha.tokens)
}

func TestHandleRegisterDuplicateEmail(t *testing.T) {
	users := newMemoryUsers()
	users.add(models.User{Email: "taken@example.com"})
	app := newAuthTestApp(t, users)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "Taken@example.com",
		"password": "supersecret",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "An account with this email already exists", decodeBody(t, resp)["error"])
}

func TestHandleLogin(t *testing.T) {
	users := newMemoryUsers()
	u, err := models.CreateUser("Ada", "ada@example.com", "correct-horse", 250)
	require.NoError(t, err)
	users.add(*u)

	tests := []struct {
		name   string
		body   map[string]string
		status int
		errMsg string
	}{
		{"missing fields", map[string]string{"email": "ada@example.com"}, http.StatusBadRequest, "Email and password are required"},
		{"unknown email", map[string]string{"email": "bob@example.com", "password": "x"}, http.StatusUnauthorized, "Invalid email or password"},
		{"wrong password", map[string]string{"email": "ada@example.com", "password": "wrong-horse"}, http.StatusUnauthorized, "Invalid email or password"},
		{"ok", map[string]string{"email": "ADA@example.com", "password": "correct-horse"}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthTestApp(t, users)
			resp := doJSON(t, app, http.MethodPost, "/api/auth/login", tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			body := decodeBody(t, resp)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, body["error"])
				return
			}
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "ada@example.com", body["user"].(map[string]interface{})["email"])
		})
	}
}

func TestHandleLoginOAuthOnlyAccount(t *testing.T) {
	users := newMemoryUsers()
	users.add(*models.NewOAuthUser(models.PROVIDER_GOOGLE, "G", "g@example.com", "", 250))
	app := newAuthTestApp(t, users)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]string{"email": "g@example.com", "password": "anything"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleLoginAdminFromAllowlist(t *testing.T) {
	t.Setenv("ADMIN_EMAILS", "boss@example.com")
	users := newMemoryUsers()
	u, err := models.CreateUser("Boss", "boss@example.com", "correct-horse", 250)
	require.NoError(t, err)
	users.add(*u)
	app := newAuthTestApp(t, users)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]string{"email": "boss@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["user"].(map[string]interface{})["isAdmin"])
}
