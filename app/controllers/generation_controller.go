package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/credits"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/generation"
)

// Upper bound for one image generation including all polls.
const generationTimeout = 4 * time.Minute

// AvatarLister reads a user's avatar history.
type AvatarLister interface {
	ListAvatarsByUser(userID uint, limit int) ([]models.AvatarGeneration, error)
}

// GenerationController serves avatar and combine generations.
type GenerationController struct {
	gateway *generation.Gateway
	history AvatarLister
}

func NewGenerationController(gateway *generation.Gateway, history AvatarLister) *GenerationController {
	return &GenerationController{gateway: gateway, history: history}
}

// HandleGenerateAvatar runs a create or edit generation.
func (gc *GenerationController) HandleGenerateAvatar(c *fiber.Ctx) error {
	var req generation.AvatarRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), generationTimeout)
	defer cancel()

	out, err := gc.gateway.GenerateAvatar(ctx, currentUserID(c), req)
	if err != nil {
		return generationError(c, "Failed to generate avatar", err)
	}
	return c.JSON(outcomeJSON(out))
}

// HandleGenerateCombine merges two to four images.
func (gc *GenerationController) HandleGenerateCombine(c *fiber.Ctx) error {
	var req generation.CombineRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), generationTimeout)
	defer cancel()

	out, err := gc.gateway.GenerateCombine(ctx, currentUserID(c), req)
	if err != nil {
		return generationError(c, "Failed to combine images", err)
	}
	return c.JSON(outcomeJSON(out))
}

// HandleListAvatars returns the newest avatar generations with their images.
func (gc *GenerationController) HandleListAvatars(c *fiber.Ctx) error {
	gens, err := gc.history.ListAvatarsByUser(currentUserID(c), repository.DefaultHistoryLimit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch avatars")
	}
	if gens == nil {
		gens = []models.AvatarGeneration{}
	}
	return c.JSON(fiber.Map{"generations": gens})
}

func outcomeJSON(out *generation.Outcome) fiber.Map {
	body := fiber.Map{
		"success":          true,
		"images":           out.Images,
		"creditsRemaining": out.CreditsRemaining,
	}
	if out.Generation != nil {
		body["generation"] = out.Generation
	}
	if out.Warning != "" {
		body["warning"] = out.Warning
	}
	return body
}

// generationError maps gateway errors to the HTTP contract shared by the
// avatar, combine and video endpoints.
func generationError(c *fiber.Ctx, fallback string, err error) error {
	var (
		insufficient *generation.InsufficientCreditsError
		invalid      *generation.ValidationError
		provider     *generation.ProviderError
	)
	switch {
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":            "Insufficient credits",
			"creditsRequired":  insufficient.Required,
			"creditsAvailable": insufficient.Available,
			"upgrade":          true,
		})
	case errors.As(err, &invalid):
		return jsonError(c, fiber.StatusBadRequest, invalid.Message)
	case errors.Is(err, credits.ErrAccountNotFound):
		return jsonError(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, generation.ErrMissingAPIKey):
		return jsonError(c, fiber.StatusInternalServerError, "Server configuration error: Missing API key")
	case errors.Is(err, generation.ErrWorkflowNotConfigured):
		return jsonError(c, fiber.StatusInternalServerError, "Server configuration error: Video workflow not configured")
	case errors.Is(err, generation.ErrNoAssets):
		return jsonError(c, fiber.StatusInternalServerError, "No images generated")
	case errors.Is(err, generation.ErrGenerationTimeout):
		return jsonError(c, fiber.StatusInternalServerError, "AI generation failed: Generation timed out")
	case errors.As(err, &provider):
		return jsonError(c, fiber.StatusInternalServerError, "AI generation failed: "+provider.Message)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return jsonError(c, fiber.StatusInternalServerError, "AI generation failed: "+err.Error())
	}
	log.Errorf("[Gateway] %s: %v", fallback, err)
	return jsonError(c, fiber.StatusInternalServerError, fallback+": "+err.Error())
}
