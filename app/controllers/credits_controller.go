package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/credits"
)

type CreditsController struct {
	ledger *credits.Ledger
}

func NewCreditsController(ledger *credits.Ledger) *CreditsController {
	return &CreditsController{ledger: ledger}
}

// HandleGetCredits returns the balance, tier allowance and price list.
func (cc *CreditsController) HandleGetCredits(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	info, err := cc.ledger.Balance(ctx, currentUserID(c))
	if err != nil {
		if errors.Is(err, credits.ErrAccountNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch credits")
	}
	return c.JSON(info)
}
