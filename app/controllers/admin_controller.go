package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/billing"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/credits"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/statistics"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/usercontext"
)

// AdminController handles admin-related HTTP requests using repository pattern
type AdminController struct {
	users   repository.UserRepository
	ledger  *credits.Ledger
	billing *billing.Service
	stats   *statistics.Service
}

func NewAdminController(users repository.UserRepository, ledger *credits.Ledger, billingService *billing.Service, stats *statistics.Service) *AdminController {
	return &AdminController{
		users:   users,
		ledger:  ledger,
		billing: billingService,
		stats:   stats,
	}
}

type linkCustomerRequest struct {
	PolarCustomerID string `json:"polarCustomerId"`
}

type adminUserUpdateRequest struct {
	UserID  uint                       `json:"userId"`
	Updates map[string]json.RawMessage `json:"updates"`
}

type awardCreditsRequest struct {
	Amount json.RawMessage `json:"amount"`
	Reason string          `json:"reason"`
}

func billingCustomerJSON(u *models.User) interface{} {
	if !u.HasBillingCustomer() {
		return nil
	}
	return *u.BillingCustomerID
}

// HandleGetLinkedCustomer shows the caller's billing link and subscription.
func (ac *AdminController) HandleGetLinkedCustomer(c *fiber.Ctx) error {
	u, err := ac.users.GetByID(currentUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"user": nil})
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to get customer info")
	}
	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":                 u.ID,
			"email":              u.Email,
			"polarCustomerId":    billingCustomerJSON(u),
			"subscriptionTier":   u.SubscriptionTier,
			"subscriptionStatus": u.SubscriptionStatus,
			"credits":            u.Credits,
		},
	})
}

// HandleLinkCustomer links a billing customer id to the caller's account.
func (ac *AdminController) HandleLinkCustomer(c *fiber.Ctx) error {
	var req linkCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	customerID := strings.TrimSpace(req.PolarCustomerID)
	if customerID == "" {
		return jsonError(c, fiber.StatusBadRequest, "Missing polarCustomerId")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	userID := currentUserID(c)
	if err := ac.billing.LinkCustomer(ctx, userID, customerID); err != nil {
		if errors.Is(err, billing.ErrCustomerAlreadyLinked) {
			return jsonError(c, fiber.StatusConflict, "Customer ID is linked to another account")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to link customer")
	}

	u, err := ac.users.GetByID(userID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to link customer")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Linked customer ID to " + u.Email,
		"user": fiber.Map{
			"id":              u.ID,
			"email":           u.Email,
			"polarCustomerId": billingCustomerJSON(u),
		},
	})
}

// HandleListUsers returns a page of accounts with their generation counts.
func (ac *AdminController) HandleListUsers(c *fiber.Ctx) error {
	filter := repository.ListUsersFilter{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
		Search: c.Query("search"),
		Tier:   c.Query("tier"),
	}.Normalize()

	rows, total, err := ac.users.List(filter)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch users")
	}

	users := make([]fiber.Map, 0, len(rows))
	for _, row := range rows {
		u := row.User
		users = append(users, fiber.Map{
			"id":                 u.ID,
			"email":              u.Email,
			"name":               u.Name,
			"image":              u.Image,
			"role":               u.Role,
			"subscriptionTier":   u.SubscriptionTier,
			"subscriptionStatus": u.SubscriptionStatus,
			"credits":            u.Credits,
			"createdAt":          u.CreatedAt,
			"lastLoginAt":        formatTimePtr(u.LastLoginAt),
			"_count": fiber.Map{
				"avatarGenerations": row.AvatarCount,
				"videoGenerations":  row.VideoCount,
			},
		})
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.Limit)))
	return c.JSON(fiber.Map{
		"users": users,
		"pagination": fiber.Map{
			"page":       filter.Page,
			"limit":      filter.Limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

// HandleUpdateUser edits name, tier, status or balance of an account. A
// balance change goes through the ledger so it is audited.
func (ac *AdminController) HandleUpdateUser(c *fiber.Ctx) error {
	var req adminUserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.UserID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "User ID is required")
	}

	fields := map[string]interface{}{}
	var newCredits *int
	for key, raw := range req.Updates {
		switch key {
		case "name":
			var name string
			if err := json.Unmarshal(raw, &name); err != nil || len(strings.TrimSpace(name)) > 150 {
				return jsonError(c, fiber.StatusBadRequest, "Invalid name")
			}
			fields["name"] = strings.TrimSpace(name)
		case "subscriptionTier":
			var s string
			_ = json.Unmarshal(raw, &s)
			tier, ok := entitlements.ParseTier(s)
			if !ok {
				return jsonError(c, fiber.StatusBadRequest, "Invalid subscriptionTier")
			}
			fields["subscription_tier"] = tier
		case "subscriptionStatus":
			var s string
			_ = json.Unmarshal(raw, &s)
			status, ok := entitlements.ParseStatus(s)
			if !ok {
				return jsonError(c, fiber.StatusBadRequest, "Invalid subscriptionStatus")
			}
			fields["subscription_status"] = status
		case "credits":
			n, ok := parseWholeNumber(raw)
			if !ok {
				return jsonError(c, fiber.StatusBadRequest, "Credits must be a number")
			}
			newCredits = &n
		}
	}
	if len(fields) == 0 && newCredits == nil {
		return jsonError(c, fiber.StatusBadRequest, "No valid updates provided")
	}

	current, err := ac.users.GetByID(req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to update user")
	}

	if len(fields) > 0 {
		if err := ac.users.UpdateFields(current.ID, fields); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "Failed to update user")
		}
	}
	if newCredits != nil && *newCredits != current.Credits {
		ctx, cancel := requestContext(c)
		defer cancel()
		if _, err := ac.ledger.AdminAdjust(ctx, current.ID, *newCredits-current.Credits, "admin balance edit", currentUserID(c)); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "Failed to update user")
		}
	}

	u, err := ac.users.GetByID(current.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to update user")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":                 u.ID,
			"email":              u.Email,
			"name":               u.Name,
			"subscriptionTier":   u.SubscriptionTier,
			"subscriptionStatus": u.SubscriptionStatus,
			"credits":            u.Credits,
		},
	})
}

// HandleAwardCredits adds a signed amount to a user's balance.
func (ac *AdminController) HandleAwardCredits(c *fiber.Ctx) error {
	var req awardCreditsRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Amount must be a number")
	}
	amount, ok := parseWholeNumber(req.Amount)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "Amount must be a number")
	}
	userID, ok := parseUint(c.Params("id"))
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "User not found")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	actor := usercontext.GetUserContext(c)
	adj, err := ac.ledger.AdminAdjust(ctx, userID, amount, strings.TrimSpace(req.Reason), actor.UserID)
	if err != nil {
		if errors.Is(err, credits.ErrAccountNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		log.Errorf("[Ledger] Award of %d credits to user %d by %s failed: %v", amount, userID, actor.Email, err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to award credits")
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"previousBalance": adj.PreviousBalance,
		"newBalance":      adj.NewBalance,
		"amountAwarded":   adj.Amount,
	})
}

// HandleStats returns the admin dashboard counters.
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	d, err := ac.stats.Dashboard(ctx)
	if err != nil {
		log.Errorf("[Statistics] Dashboard failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch stats")
	}
	return c.JSON(d)
}

// parseWholeNumber accepts a JSON number without a fractional part.
func parseWholeNumber(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
