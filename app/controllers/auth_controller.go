package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/session"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/usercontext"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/utils"
)

const invalidCredentials = "Invalid email or password"

type registerRequest struct {
	Name     string `json:"name" validate:"max=150"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`

	CaptchaToken string `json:"captchaToken"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CaptchaVerifier checks a bot challenge token submitted with registration.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// AuthController handles credential sign-up, sign-in and OAuth callbacks.
type AuthController struct {
	users    repository.UserRepository
	accounts repository.ProviderAccountRepository
	tables   *entitlements.Tables
	captcha  CaptchaVerifier
	validate *validator.Validate
}

// SetCaptcha makes registration require a valid captcha token.
func (ac *AuthController) SetCaptcha(v CaptchaVerifier) {
	ac.captcha = v
}

func NewAuthController(users repository.UserRepository, accounts repository.ProviderAccountRepository, tables *entitlements.Tables) *AuthController {
	if tables == nil {
		tables = entitlements.DefaultTables()
	}
	return &AuthController{
		users:    users,
		accounts: accounts,
		tables:   tables,
		validate: validator.New(),
	}
}

// isAdminAccount combines the stored role with the ADMIN_EMAILS allowlist.
func isAdminAccount(u *models.User) bool {
	return u.IsAdmin() || usercontext.IsAdminEmail(u.Email)
}

func accountJSON(u *models.User) fiber.Map {
	return fiber.Map{
		"id":                 u.ID,
		"name":               u.Name,
		"email":              u.Email,
		"image":              u.Image,
		"isAdmin":            isAdminAccount(u),
		"credits":            u.Credits,
		"subscriptionTier":   u.SubscriptionTier,
		"subscriptionStatus": u.SubscriptionStatus,
	}
}

func (ac *AuthController) signIn(c *fiber.Ctx, u *models.User) error {
	if err := session.StartUserSession(c, u.ID, u.Name, u.Email, isAdminAccount(u)); err != nil {
		return err
	}
	if err := ac.users.TouchLastLogin(u.ID, time.Now()); err != nil {
		log.Warnf("Failed to stamp last login of user %d: %v", u.ID, err)
	}
	return nil
}

// HandleRegister creates a credentials account on the free tier and signs it in.
func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Email = models.NormalizeEmail(req.Email)
	if err := ac.validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, registerValidationMessage(err))
	}
	if ac.captcha != nil {
		if err := ac.captcha.Verify(c.UserContext(), req.CaptchaToken, c.IP()); err != nil {
			log.Warnf("Captcha rejected for %s: %v", req.Email, err)
			return jsonError(c, fiber.StatusBadRequest, "Captcha verification failed")
		}
	}

	if _, err := ac.users.GetByEmail(req.Email); err == nil {
		return jsonError(c, fiber.StatusConflict, "An account with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to create account")
	}

	name := firstNonEmpty(strings.TrimSpace(req.Name), strings.Split(req.Email, "@")[0])
	user, err := models.CreateUser(name, req.Email, req.Password, ac.tables.StoredAllowance(entitlements.TierFree))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid account data")
	}
	user.Image = utils.GravatarURL(user.Email, utils.DefaultAvatarSize)
	if err := ac.users.Create(user); err != nil {
		log.Errorf("Failed to create user %s: %v", req.Email, err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to create account")
	}

	if err := ac.signIn(c, user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to start session")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "user": accountJSON(user)})
}

func registerValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	switch verrs[0].Field() {
	case "Email":
		return "A valid email is required"
	case "Password":
		return "Password must be between 8 and 72 characters"
	case "Name":
		return "Name is too long"
	}
	return "Invalid request"
}

// HandleLogin checks credentials and starts a session.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return jsonError(c, fiber.StatusBadRequest, "Email and password are required")
	}

	user, err := ac.users.GetByEmail(models.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusUnauthorized, invalidCredentials)
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to sign in")
	}
	if !user.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, invalidCredentials)
	}

	if err := ac.signIn(c, user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to start session")
	}
	return c.JSON(fiber.Map{"success": true, "user": accountJSON(user)})
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := session.EndUserSession(c); err != nil {
		log.Warnf("Failed to end session: %v", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleMe returns the signed-in account.
func (ac *AuthController) HandleMe(c *fiber.Ctx) error {
	user, err := ac.users.GetByID(currentUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to load user")
	}
	return c.JSON(fiber.Map{"user": accountJSON(user)})
}
