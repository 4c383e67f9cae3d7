package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

// HandleOAuthCallback completes the provider flow and logs the user in
func (ac *AuthController) HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	appUser, err := ac.resolveOAuthUser(u)
	if err != nil {
		log.Errorf("OAuth sign-in via %s failed: %v", u.Provider, err)
		return c.Status(fiber.StatusInternalServerError).SendString("OAuth sign-in failed")
	}

	if err := ac.signIn(c, appUser); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session init failed")
	}
	return c.Redirect(env.GetEnv("OAUTH_SUCCESS_REDIRECT", "/dashboard"), fiber.StatusSeeOther)
}

// resolveOAuthUser finds the account of an OAuth identity, linking by email
// and creating a free account on first sign-in.
func (ac *AuthController) resolveOAuthUser(u goth.User) (*models.User, error) {
	var exp *time.Time
	if !u.ExpiresAt.IsZero() {
		t := u.ExpiresAt
		exp = &t
	}

	pa, err := ac.accounts.GetByProviderUID(u.Provider, u.UserID)
	if err == nil {
		pa.Touch(u.AccessToken, u.RefreshToken, exp)
		if err := ac.accounts.Save(pa); err != nil {
			return nil, fmt.Errorf("update tokens: %w", err)
		}
		return ac.users.GetByID(pa.UserID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if u.Email == "" {
		return nil, errors.New("provider returned no email")
	}
	email := models.NormalizeEmail(u.Email)

	appUser, err := ac.users.GetByEmail(email)
	switch {
	case err == nil:
		if appUser.Image == "" && u.AvatarURL != "" {
			appUser.Image = u.AvatarURL
			if err := ac.users.UpdateFields(appUser.ID, map[string]interface{}{"image": u.AvatarURL}); err != nil {
				log.Warnf("Failed to store avatar of user %d: %v", appUser.ID, err)
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		appUser = models.NewOAuthUser(
			u.Provider,
			firstNonEmpty(u.Name, u.NickName, email),
			email,
			u.AvatarURL,
			ac.tables.StoredAllowance(entitlements.TierFree),
		)
		if err := ac.users.Create(appUser); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	default:
		return nil, err
	}

	pa = &models.ProviderAccount{
		UserID:         appUser.ID,
		Provider:       u.Provider,
		ProviderUserID: u.UserID,
	}
	pa.Touch(u.AccessToken, u.RefreshToken, exp)
	if err := ac.accounts.Save(pa); err != nil {
		return nil, fmt.Errorf("link provider: %w", err)
	}
	return appUser, nil
}
