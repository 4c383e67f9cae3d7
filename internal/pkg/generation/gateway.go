package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/credits"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/metrics"
)

const (
	MinCombineImages = 2
	MaxCombineImages = 4

	HistorySaveWarning = "Images generated but failed to save to history"
)

// CreditLedger is the part of the credit ledger a generation needs.
type CreditLedger interface {
	CheckAffordability(ctx context.Context, userID uint, action entitlements.Action) (credits.Affordability, error)
	Debit(ctx context.Context, userID uint, action entitlements.Action) (int, error)
}

// AvatarHistory stores finished avatar generations.
type AvatarHistory interface {
	CreateAvatar(gen *models.AvatarGeneration) error
}

// ArchiveScheduler is notified after a generation has been stored.
type ArchiveScheduler interface {
	ScheduleArchive(ctx context.Context, gen *models.AvatarGeneration) error
}

type AvatarRequest struct {
	Prompt         string `json:"prompt"`
	Mode           string `json:"mode"`
	SourceImageURL string `json:"sourceImageUrl"`
}

type CombineRequest struct {
	Prompt    string   `json:"prompt"`
	ImageURLs []string `json:"imageUrls"`
}

// Outcome is what a successful generation hands back to the caller.
// Generation is nil when the history write failed; Warning says so.
type Outcome struct {
	Images           []string
	CreditsRemaining int
	Generation       *models.AvatarGeneration
	Warning          string
}

// Gateway runs paid image generations against the fal.ai queue. Credits
// are checked before the provider is called and charged only after assets
// came back.
type Gateway struct {
	ledger   CreditLedger
	provider QueueProvider
	history  AvatarHistory
	poller   *Poller
	archiver ArchiveScheduler
}

func NewGateway(ledger CreditLedger, provider QueueProvider, history AvatarHistory, poller *Poller) *Gateway {
	if poller == nil {
		poller = NewPoller()
	}
	return &Gateway{
		ledger:   ledger,
		provider: provider,
		history:  history,
		poller:   poller,
	}
}

// SetArchiver enables archiving of stored generations.
func (g *Gateway) SetArchiver(a ArchiveScheduler) {
	g.archiver = a
}

// GenerateAvatar creates a new avatar from a prompt, or edits the source
// image when Mode is "edit".
func (g *Gateway) GenerateAvatar(ctx context.Context, userID uint, req AvatarRequest) (*Outcome, error) {
	action := entitlements.ActionAvatar
	if err := g.ensureAffordable(ctx, userID, action); err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	source := strings.TrimSpace(req.SourceImageURL)
	if mode == "" {
		mode = models.AVATAR_MODE_CREATE
	}
	if prompt == "" {
		return nil, g.reject(action, validationError("Prompt is required"))
	}

	var (
		model string
		input map[string]interface{}
	)
	switch mode {
	case models.AVATAR_MODE_CREATE:
		model = ModelCreate
		input = map[string]interface{}{"prompt": prompt}
	case models.AVATAR_MODE_EDIT:
		if source == "" {
			return nil, g.reject(action, validationError("Source image is required for edit mode"))
		}
		model = ModelEdit
		input = map[string]interface{}{
			"image_urls": []string{source},
			"prompt":     prompt,
		}
	default:
		return nil, g.reject(action, validationError("Mode must be create or edit"))
	}

	return g.run(ctx, userID, action, model, input, func(urls []string) *models.AvatarGeneration {
		return models.NewAvatarGeneration(userID, mode, prompt, source, urls)
	})
}

// GenerateCombine merges two to four images into one scene.
func (g *Gateway) GenerateCombine(ctx context.Context, userID uint, req CombineRequest) (*Outcome, error) {
	action := entitlements.ActionCombine
	if err := g.ensureAffordable(ctx, userID, action); err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, g.reject(action, validationError("Prompt is required"))
	}
	if len(req.ImageURLs) < MinCombineImages {
		return nil, g.reject(action, validationError("At least %d images are required", MinCombineImages))
	}
	if len(req.ImageURLs) > MaxCombineImages {
		return nil, g.reject(action, validationError("Maximum %d images allowed", MaxCombineImages))
	}

	images := make([]string, len(req.ImageURLs))
	copy(images, req.ImageURLs)
	input := map[string]interface{}{
		"image_urls": images,
		"prompt":     prompt,
	}

	return g.run(ctx, userID, action, ModelEdit, input, func(urls []string) *models.AvatarGeneration {
		return models.NewAvatarGeneration(userID, models.AVATAR_MODE_COMBINE, prompt, images[0], urls)
	})
}

func (g *Gateway) ensureAffordable(ctx context.Context, userID uint, action entitlements.Action) error {
	aff, err := g.ledger.CheckAffordability(ctx, userID, action)
	if err != nil {
		return err
	}
	if !aff.Affordable {
		metrics.Get().RecordGeneration(string(action), "insufficient_credits")
		return &InsufficientCreditsError{Action: action, Required: aff.Cost, Available: aff.Balance}
	}
	return nil
}

func (g *Gateway) reject(action entitlements.Action, err error) error {
	metrics.Get().RecordGeneration(string(action), "invalid")
	return err
}

func (g *Gateway) run(
	ctx context.Context,
	userID uint,
	action entitlements.Action,
	model string,
	input map[string]interface{},
	build func(urls []string) *models.AvatarGeneration,
) (*Outcome, error) {
	ticket, err := g.provider.Submit(ctx, model, input)
	if err != nil {
		metrics.Get().RecordGeneration(string(action), "provider_error")
		return nil, err
	}

	result, attempts, err := g.poller.Wait(ctx, g.provider, ticket)
	metrics.Get().ObservePollAttempts("fal", attempts)
	if err != nil {
		if errors.Is(err, ErrGenerationTimeout) {
			metrics.Get().RecordGeneration(string(action), "timeout")
		} else {
			metrics.Get().RecordGeneration(string(action), "provider_error")
		}
		log.Errorf("[Gateway] %s generation for user %d failed after %d polls: %v", action, userID, attempts, err)
		return nil, err
	}

	extraction := ExtractImages(result)
	if extraction.Outcome == NoAssets {
		metrics.Get().RecordGeneration(string(action), "no_assets")
		log.Warnf("[Gateway] %s generation for user %d returned no images (request %s)", action, userID, ticket.RequestID)
		return nil, ErrNoAssets
	}

	out := &Outcome{Images: extraction.URLs}
	remaining, err := g.ledger.Debit(ctx, userID, action)
	if err != nil {
		// The assets exist already; hand them out and leave a trail.
		metrics.Get().RecordDebitAfterSuccessFailure(string(action))
		log.Errorf("[Gateway] Debit of %s for user %d failed after successful generation: %v", action, userID, err)
		if aff, affErr := g.ledger.CheckAffordability(ctx, userID, action); affErr == nil {
			remaining = aff.Balance
		}
	}
	out.CreditsRemaining = remaining
	metrics.Get().RecordGeneration(string(action), "success")

	gen := build(extraction.URLs)
	if err := g.history.CreateAvatar(gen); err != nil {
		log.Errorf("[Gateway] Failed to save %s generation for user %d: %v", action, userID, err)
		out.Warning = HistorySaveWarning
		return out, nil
	}
	out.Generation = gen

	if g.archiver != nil {
		if err := g.archiver.ScheduleArchive(ctx, gen); err != nil {
			log.Warnf("[Gateway] Failed to schedule archive for generation %s: %v", gen.UUID, err)
		}
	}
	return out, nil
}
