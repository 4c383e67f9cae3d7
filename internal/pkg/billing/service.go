package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Service reconciles billing events into account state.
type Service struct {
	repo   Repository
	tables *entitlements.Tables
	now    func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, tables *entitlements.Tables) *Service {
	if tables == nil {
		tables = entitlements.DefaultTables()
	}
	return &Service{repo: repo, tables: tables, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, tables *entitlements.Tables) *Service {
	return NewService(NewRepository(db), tables)
}

// HandleEvent resolves the account an event refers to, computes the
// transition and writes it. Unresolved events are not an error.
func (s *Service) HandleEvent(ctx context.Context, ev Event) (Result, error) {
	var current *AccountState
	if needsAccount(ev) {
		acc, err := s.resolve(ctx, ev.Customer())
		if err != nil {
			return Result{}, fmt.Errorf("resolve account: %w", err)
		}
		current = acc
	}

	res := Transition(current, ev, s.tables, s.now())
	switch res.Outcome {
	case OutcomeApplied:
		ok, err := s.repo.ApplyUpdate(ctx, *res.Update)
		if err != nil {
			return res, fmt.Errorf("apply %s for user %d: %w", ev.Type(), res.Update.UserID, err)
		}
		if !ok {
			log.Infof("[Billing] %s for user %d skipped: period end already advanced", ev.Type(), current.UserID)
			st := *current
			return Result{Outcome: OutcomeNoop, State: &st, Reason: "period end already advanced"}, nil
		}
		log.Infof("[Billing] %s applied to user %d: %v tier=%s status=%s credits=%d",
			ev.Type(), res.State.UserID, res.Effects, res.State.Tier, res.State.Status, res.State.Credits)
	case OutcomeUnresolved:
		log.Warnf("[Billing] %s dropped: %s", ev.Type(), res.Reason)
	case OutcomeNoop:
		log.Infof("[Billing] %s no-op for user %d: %s", ev.Type(), current.UserID, res.Reason)
	default:
		log.Infof("[Billing] %s %s: %s", ev.Type(), res.Outcome, res.Reason)
	}
	return res, nil
}

// resolve finds the account by billing customer id, then by email.
func (s *Service) resolve(ctx context.Context, ref CustomerRef) (*AccountState, error) {
	if ref.CustomerID != "" {
		acc, err := s.repo.FindAccountByCustomerID(ctx, ref.CustomerID)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if ref.Email != "" {
		acc, err := s.repo.FindAccountByEmail(ctx, ref.Email)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// LinkCustomer stores a billing customer id on an account.
func (s *Service) LinkCustomer(ctx context.Context, userID uint, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if userID == 0 || customerID == "" {
		return errors.New("user_id and customer_id are required")
	}
	if err := s.repo.LinkCustomer(ctx, userID, customerID); err != nil {
		return err
	}
	log.Infof("[Billing] Linked customer %s to user %d", customerID, userID)
	return nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(ctx, event)
	if err != nil || created {
		return created, stored, err
	}

	// A verified delivery takes over a row left by an unverified one.
	if event.SignatureValid && !stored.SignatureValid {
		if err := s.repo.ReplaceWebhookPayload(ctx, stored.ID, event.EventType, event.PayloadJSON, true); err != nil {
			return false, nil, err
		}
		stored.EventType = event.EventType
		stored.PayloadJSON = event.PayloadJSON
		stored.SignatureValid = true
	}
	return false, stored, nil
}

// MarkWebhookProcessed stores the outcome and an optional error on an event.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, res Result, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	outcome := string(res.Outcome)
	errMsg := ""
	if processingErr != nil {
		outcome = models.WebhookOutcomeFailed
		errMsg = processingErr.Error()
	}
	var userID *uint
	if res.State != nil {
		id := res.State.UserID
		userID = &id
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, outcome, userID, errMsg)
}

// ReplayWebhookEvent reprocesses a stored delivery. The renewal guard keeps
// replays of already applied renewals from resetting credits again.
func (s *Service) ReplayWebhookEvent(ctx context.Context, id uint) (Result, error) {
	stored, err := s.repo.GetWebhookEvent(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !stored.SignatureValid {
		return Result{}, fmt.Errorf("webhook event %d has no valid signature", id)
	}

	ev, err := ParsePolarEvent([]byte(stored.PayloadJSON))
	if err != nil {
		_ = s.MarkWebhookProcessed(ctx, stored.ID, Result{}, err)
		return Result{}, err
	}
	res, err := s.HandleEvent(ctx, ev)
	_ = s.MarkWebhookProcessed(ctx, stored.ID, res, err)
	return res, err
}
