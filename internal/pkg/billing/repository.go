package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCustomerAlreadyLinked is returned when a billing customer id belongs to
// another account.
var ErrCustomerAlreadyLinked = errors.New("billing customer is linked to another account")

// Repository provides DB operations used by the billing service.
type Repository interface {
	FindAccountByCustomerID(ctx context.Context, customerID string) (*AccountState, error)
	FindAccountByEmail(ctx context.Context, email string) (*AccountState, error)
	// ApplyUpdate writes upd atomically. It reports false when the period
	// guard rejected the write.
	ApplyUpdate(ctx context.Context, upd Update) (bool, error)
	LinkCustomer(ctx context.Context, userID uint, customerID string) error
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, outcome string, userID *uint, processingError string) error
	ReplaceWebhookPayload(ctx context.Context, id uint, eventType, payloadJSON string, signatureValid bool) error
	GetWebhookEvent(ctx context.Context, id uint) (*models.BillingWebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func toAccountState(u *models.User) *AccountState {
	return &AccountState{
		UserID:            u.ID,
		Email:             u.Email,
		BillingCustomerID: u.BillingCustomerID,
		Tier:              u.SubscriptionTier,
		Status:            u.SubscriptionStatus,
		SubscriptionID:    u.SubscriptionID,
		CurrentPeriodEnd:  u.CurrentPeriodEnd,
		Credits:           u.Credits,
		CreditsResetDate:  u.CreditsResetDate,
	}
}

func (r *gormRepository) FindAccountByCustomerID(ctx context.Context, customerID string) (*AccountState, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("billing_customer_id = ?", customerID).First(&u).Error; err != nil {
		return nil, err
	}
	return toAccountState(&u), nil
}

func (r *gormRepository) FindAccountByEmail(ctx context.Context, email string) (*AccountState, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", models.NormalizeEmail(email)).First(&u).Error; err != nil {
		return nil, err
	}
	return toAccountState(&u), nil
}

func (r *gormRepository) ApplyUpdate(ctx context.Context, upd Update) (bool, error) {
	fields := upd.Fields()
	if len(fields) == 0 {
		return false, nil
	}

	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "credits").
			First(&before, upd.UserID).Error; err != nil {
			return err
		}

		q := tx.Model(&models.User{}).Where("id = ?", upd.UserID)
		if upd.PeriodGuard != nil {
			q = q.Where("(current_period_end IS NULL OR current_period_end < ?)", *upd.PeriodGuard)
		}
		res := q.Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if upd.PeriodGuard != nil && res.RowsAffected == 0 {
			return nil
		}
		applied = true

		if upd.Credits == nil {
			return nil
		}
		prev := before.Credits
		return tx.Create(&models.CreditTransaction{
			UserID:        upd.UserID,
			Kind:          models.CREDIT_TX_RESET,
			Amount:        *upd.Credits - prev,
			BalanceBefore: &prev,
			BalanceAfter:  *upd.Credits,
			Reason:        "billing: " + upd.Reason,
		}).Error
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *gormRepository) LinkCustomer(ctx context.Context, userID uint, customerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		err := tx.Select("id").Where("billing_customer_id = ?", customerID).First(&owner).Error
		switch {
		case err == nil && owner.ID != userID:
			return ErrCustomerAlreadyLinked
		case err == nil:
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("billing_customer_id", customerID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("link customer: %w", gorm.ErrRecordNotFound)
		}
		return nil
	})
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, outcome string, userID *uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"outcome":          outcome,
		"processing_error": processingError,
	}
	if userID != nil {
		updates["user_id"] = *userID
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) ReplaceWebhookPayload(ctx context.Context, id uint, eventType, payloadJSON string, signatureValid bool) error {
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"event_type":      eventType,
		"payload_json":    payloadJSON,
		"signature_valid": signatureValid,
	}).Error
}

func (r *gormRepository) GetWebhookEvent(ctx context.Context, id uint) (*models.BillingWebhookEvent, error) {
	var ev models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}
