package credits

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Account is the balance-relevant slice of an account.
type Account struct {
	ID               uint
	Credits          int
	Tier             entitlements.Tier
	CreditsResetDate *time.Time
}

// Entry describes the audit row written alongside a balance change.
type Entry struct {
	Kind        string
	Action      entitlements.Action
	Reason      string
	ActorUserID *uint
}

// Store is the persistence behind a Ledger. Every method that changes a
// balance must do so atomically together with its audit entry.
type Store interface {
	GetAccount(ctx context.Context, userID uint) (*Account, error)
	// DebitIfAffordable subtracts cost only when the balance covers it and
	// returns the new balance.
	DebitIfAffordable(ctx context.Context, userID uint, cost int, entry Entry) (int, error)
	SetBalance(ctx context.Context, userID uint, balance int, resetAt time.Time, entry Entry) error
	// Adjust adds delta without any floor and returns the balance before and after.
	Adjust(ctx context.Context, userID uint, delta int, entry Entry) (int, int, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by the users and credit_transactions tables.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GetAccount(ctx context.Context, userID uint) (*Account, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Select("id", "credits", "subscription_tier", "credits_reset_date").
		First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Account{
		ID:               u.ID,
		Credits:          u.Credits,
		Tier:             u.SubscriptionTier,
		CreditsResetDate: u.CreditsResetDate,
	}, nil
}

func (s *gormStore) DebitIfAffordable(ctx context.Context, userID uint, cost int, entry Entry) (int, error) {
	var balance int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND credits >= ?", userID, cost).
			Update("credits", gorm.Expr("credits - ?", cost))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrAccountNotFound
			}
			return ErrInsufficientCredits
		}

		if err := tx.Model(&models.User{}).Select("credits").Where("id = ?", userID).Scan(&balance).Error; err != nil {
			return err
		}
		before := balance + cost
		return tx.Create(&models.CreditTransaction{
			UserID:        userID,
			Kind:          models.CREDIT_TX_DEBIT,
			Action:        string(entry.Action),
			Amount:        -cost,
			BalanceBefore: &before,
			BalanceAfter:  balance,
			Reason:        entry.Reason,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *gormStore) SetBalance(ctx context.Context, userID uint, balance int, resetAt time.Time, entry Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "credits").First(&u, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"credits":            balance,
			"credits_reset_date": resetAt,
		}).Error; err != nil {
			return err
		}

		before := u.Credits
		return tx.Create(&models.CreditTransaction{
			UserID:        userID,
			Kind:          entry.Kind,
			Amount:        balance - before,
			BalanceBefore: &before,
			BalanceAfter:  balance,
			Reason:        entry.Reason,
			ActorUserID:   entry.ActorUserID,
		}).Error
	})
}

func (s *gormStore) Adjust(ctx context.Context, userID uint, delta int, entry Entry) (int, int, error) {
	var before, after int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "credits").First(&u, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		before = u.Credits
		after = before + delta
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("credits", gorm.Expr("credits + ?", delta)).Error; err != nil {
			return err
		}

		return tx.Create(&models.CreditTransaction{
			UserID:        userID,
			Kind:          models.CREDIT_TX_ADMIN_ADJUST,
			Amount:        delta,
			BalanceBefore: &before,
			BalanceAfter:  after,
			Reason:        entry.Reason,
			ActorUserID:   entry.ActorUserID,
		}).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return before, after, nil
}
