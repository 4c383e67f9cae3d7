package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
)

type UserController struct {
	users repository.UserRepository
}

func NewUserController(users repository.UserRepository) *UserController {
	return &UserController{users: users}
}

type profileUpdateRequest struct {
	Name            *string `json:"name"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

// HandleStats returns the caller's balance, subscription and generation counts.
func (uc *UserController) HandleStats(c *fiber.Ctx) error {
	userID := currentUserID(c)
	account, err := uc.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch user stats")
	}

	stats, err := uc.users.GetStatsByUserID(userID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch user stats")
	}

	return c.JSON(fiber.Map{
		"credits":            account.Credits,
		"subscriptionTier":   account.SubscriptionTier,
		"subscriptionStatus": account.SubscriptionStatus,
		"createdAt":          account.CreatedAt,
		"avatarCount":        stats.AvatarCount,
		"videoCount":         stats.VideoCount,
	})
}

// HandleUpdateProfile changes the display name and/or the password.
func (uc *UserController) HandleUpdateProfile(c *fiber.Ctx) error {
	var req profileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	account, err := uc.users.GetByID(currentUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to update profile")
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 150 {
			return jsonError(c, fiber.StatusBadRequest, "Name must be between 1 and 150 characters")
		}
		fields["name"] = name
		account.Name = name
	}
	if req.NewPassword != "" {
		if len(req.NewPassword) < 8 || len(req.NewPassword) > 72 {
			return jsonError(c, fiber.StatusBadRequest, "Password must be between 8 and 72 characters")
		}
		// OAuth-only accounts may set a first password without one
		if account.Password != "" && !account.CheckPassword(req.CurrentPassword) {
			return jsonError(c, fiber.StatusBadRequest, "Current password is incorrect")
		}
		hash, err := models.HashPassword(req.NewPassword)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "Failed to update profile")
		}
		fields["password"] = hash
	}
	if len(fields) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "No valid updates provided")
	}

	if err := uc.users.UpdateFields(account.ID, fields); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to update profile")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    account.ID,
			"name":  account.Name,
			"email": account.Email,
		},
	})
}
