package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/billing"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/metrics"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/usercontext"
)

// CheckoutProvider creates hosted checkout and portal sessions.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, in billing.CheckoutRequest) (string, error)
	CreateCustomerPortalSession(ctx context.Context, customerID string) (string, error)
}

// BillingController receives Polar webhooks and redirects to hosted billing pages.
type BillingController struct {
	service       *billing.Service
	checkout      CheckoutProvider
	users         repository.UserRepository
	webhookSecret string
	now           func() time.Time
}

func NewBillingController(service *billing.Service, checkout CheckoutProvider, users repository.UserRepository, webhookSecret string) *BillingController {
	return &BillingController{
		service:       service,
		checkout:      checkout,
		users:         users,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

func peekEventType(raw []byte) string {
	var env struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &env)
	return strings.TrimSpace(env.Type)
}

// HandlePolarWebhook records, verifies and reconciles one delivery.
func (bc *BillingController) HandlePolarWebhook(c *fiber.Ctx) error {
	start := bc.now()
	rawBody := append([]byte(nil), c.Body()...)
	msgID := strings.TrimSpace(c.Get(billing.HeaderWebhookID))
	eventType := peekEventType(rawBody)

	ctx, cancel := context.WithTimeout(c.UserContext(), defaultRequestTimeout)
	defer cancel()

	sigErr := billing.VerifyStandardWebhook(
		rawBody,
		msgID,
		c.Get(billing.HeaderWebhookTimestamp),
		c.Get(billing.HeaderWebhookSignature),
		bc.webhookSecret,
		start,
	)

	// Unverified deliveries without an id are not stored.
	if sigErr != nil && msgID == "" {
		log.Warnf("[Billing] Rejected webhook without id: %v", sigErr)
		metrics.Get().RecordWebhook(eventType, "invalid_signature", time.Since(start))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	created, stored, err := bc.service.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderPolar,
		ProviderEventID: msgID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  sigErr == nil,
	})
	if err != nil {
		log.Errorf("[Billing] Failed to record webhook %s: %v", msgID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// a delivery whose processing failed earlier is processed again
	if !created && stored.Outcome != models.WebhookOutcomeFailed {
		metrics.Get().RecordWebhook(eventType, "duplicate", time.Since(start))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if sigErr != nil {
		log.Warnf("[Billing] Rejected webhook %s: %v", msgID, sigErr)
		_ = bc.service.MarkWebhookProcessed(ctx, stored.ID, billing.Result{}, sigErr)
		metrics.Get().RecordWebhook(eventType, "invalid_signature", time.Since(start))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ev, err := billing.ParsePolarEvent(rawBody)
	if err != nil {
		_ = bc.service.MarkWebhookProcessed(ctx, stored.ID, billing.Result{}, err)
		metrics.Get().RecordWebhook(eventType, "invalid_payload", time.Since(start))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	res, err := bc.service.HandleEvent(ctx, ev)
	if markErr := bc.service.MarkWebhookProcessed(ctx, stored.ID, res, err); markErr != nil {
		log.Warnf("[Billing] Failed to store outcome of webhook %s: %v", msgID, markErr)
	}
	// reconciliation failures stay with us: the event is stored as failed for
	// a replay, and a retried delivery would be dropped the same way
	if err != nil {
		log.Errorf("[Billing] Processing webhook %s (%s) failed: %v", msgID, ev.Type(), err)
		metrics.Get().RecordWebhook(ev.Type(), models.WebhookOutcomeFailed, time.Since(start))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": models.WebhookOutcomeFailed})
	}

	metrics.Get().RecordWebhook(ev.Type(), string(res.Outcome), time.Since(start))
	switch res.Outcome {
	case billing.OutcomeUnresolved, billing.OutcomeIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": res.Outcome})
}

// HandleCheckout redirects to a hosted checkout for ?products=<id>[,<id>].
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	var products []string
	for _, p := range strings.Split(c.Query("products"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	if len(products) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "Missing products")
	}

	in := billing.CheckoutRequest{
		ProductIDs:    products,
		CustomerEmail: c.Query("customerEmail"),
	}
	// signed-in buyers are matched back by email and external id
	if uc := usercontext.GetUserContext(c); uc.IsLoggedIn {
		in.CustomerEmail = firstNonEmpty(uc.Email, in.CustomerEmail)
		in.ExternalCustomerID = uintString(uc.UserID)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	url, err := bc.checkout.CreateCheckout(ctx, in)
	if err != nil {
		log.Errorf("[Billing] Checkout for %v failed: %v", products, err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to create checkout")
	}
	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandlePortal redirects the caller to the customer portal.
func (bc *BillingController) HandlePortal(c *fiber.Ctx) error {
	u, err := bc.users.GetByID(currentUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to open customer portal")
	}
	if !u.HasBillingCustomer() {
		return jsonError(c, fiber.StatusBadRequest, "No billing customer linked")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	url, err := bc.checkout.CreateCustomerPortalSession(ctx, *u.BillingCustomerID)
	if err != nil {
		log.Errorf("[Billing] Portal session for user %d failed: %v", u.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to open customer portal")
	}
	return c.Redirect(url, fiber.StatusSeeOther)
}
