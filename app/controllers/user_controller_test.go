package controllers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
)

func newUserTestApp(t *testing.T) (*fiber.App, *memoryUsers) {
	t.Helper()
	users := newMemoryUsers()
	u, err := models.CreateUser("Ada", "ada@example.com", "correct-horse", 250)
	require.NoError(t, err)
	u.ID = 1
	u.SubscriptionTier = entitlements.TierPro
	users.add(*u)
	users.stats[1] = repository.UserStats{AvatarCount: 4, VideoCount: 2}

	uc := NewUserController(users)
	app := newTestApp(signedIn(1))
	app.Get("/api/user/stats", uc.HandleStats)
	app.Patch("/api/user/profile", uc.HandleUpdateProfile)
	return app, users
}

func TestHandleUserStats(t *testing.T) {
	app, _ := newUserTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/api/user/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 250, body["credits"])
	assert.Equal(t, "pro", body["subscriptionTier"])
	assert.EqualValues(t, 4, body["avatarCount"])
	assert.EqualValues(t, 2, body["videoCount"])
}

func TestHandleUpdateProfile(t *testing.T) {
	app, users := newUserTestApp(t)

	resp := doJSON(t, app, http.MethodPatch, "/api/user/profile", map[string]string{"name": " Ada L. "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada L.", users.get(1).Name)

	resp = doJSON(t, app, http.MethodPatch, "/api/user/profile", map[string]string{"newPassword": "new-password", "currentPassword": "wrong"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Current password is incorrect", decodeBody(t, resp)["error"])

	resp = doJSON(t, app, http.MethodPatch, "/api/user/profile", map[string]string{"newPassword": "new-password", "currentPassword": "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	u := users.get(1)
	assert.True(t, u.CheckPassword("new-password"))

	resp = doJSON(t, app, http.MethodPatch, "/api/user/profile", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No valid updates provided", decodeBody(t, resp)["error"])
}
